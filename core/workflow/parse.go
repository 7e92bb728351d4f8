package workflow

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/spacenew/triggerflow/core/infra/schema"
)

//go:embed schema/workflow.schema.json
var workflowSchemaJSON []byte

var workflowSchema = schema.MustCompile("workflow", workflowSchemaJSON)

// Parse decodes and validates a workflow definition document. The document
// is checked against the JSON Schema first, then against the semantic rules
// in Validate, so a definition that parses is safe to register.
func Parse(data []byte) (*WorkflowDefinition, error) {
	if err := workflowSchema.Validate(data); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow document: %w", err)
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the semantic rules the schema cannot express: action IDs
// unique across the main chain and the error handler chain, parseable
// trigger condition, and well-formed template placeholders everywhere.
func Validate(def *WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("workflow definition required")
	}
	if def.ID == "" {
		return fmt.Errorf("workflow id required")
	}
	if def.Trigger.Type != TriggerTypeEvent {
		return fmt.Errorf("workflow %s: unsupported trigger type %q", def.ID, def.Trigger.Type)
	}
	if def.Trigger.Event == "" {
		return fmt.Errorf("workflow %s: trigger event required", def.ID)
	}
	if def.Trigger.Condition != "" {
		if err := CheckCondition(def.Trigger.Condition); err != nil {
			return fmt.Errorf("workflow %s: %w", def.ID, err)
		}
	}
	seen := make(map[string]bool)
	for _, a := range def.Actions {
		if err := validateAction(def.ID, a, seen); err != nil {
			return err
		}
	}
	if def.ErrorHandler != nil {
		for _, a := range def.ErrorHandler.Actions {
			if err := validateAction(def.ID, a, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateAction(workflowID string, a ActionSpec, seen map[string]bool) error {
	if a.ID == "" {
		return fmt.Errorf("workflow %s: action id required", workflowID)
	}
	if a.Type == "" {
		return fmt.Errorf("workflow %s: action %s: type required", workflowID, a.ID)
	}
	if seen[a.ID] {
		return fmt.Errorf("workflow %s: duplicate action id %q", workflowID, a.ID)
	}
	seen[a.ID] = true

	for _, s := range []string{a.Target, a.Template, a.Channel} {
		if err := CheckTemplate(s); err != nil {
			return fmt.Errorf("workflow %s: action %s: %w", workflowID, a.ID, err)
		}
	}
	if err := checkTemplateValue(a.Data); err != nil {
		return fmt.Errorf("workflow %s: action %s: %w", workflowID, a.ID, err)
	}
	return nil
}

func checkTemplateValue(v any) error {
	switch t := v.(type) {
	case string:
		return CheckTemplate(t)
	case map[string]any:
		for _, item := range t {
			if err := checkTemplateValue(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range t {
			if err := checkTemplateValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}
