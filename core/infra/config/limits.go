package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkflowLimit bounds one workflow's invocations.
type WorkflowLimit struct {
	InvocationTimeoutSeconds int64 `yaml:"invocation_timeout_seconds"`
}

// LimitsConfig carries per-workflow execution limits loaded from YAML.
type LimitsConfig struct {
	Version   int                      `yaml:"version"`
	Defaults  WorkflowLimit            `yaml:"defaults"`
	Workflows map[string]WorkflowLimit `yaml:"workflows"`
}

// LoadLimits loads a YAML limits file; returns defaults if missing.
func LoadLimits(path string) (*LimitsConfig, error) {
	if path == "" {
		return defaultLimits(), nil
	}
	// #nosec G304 -- limits config path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultLimits(), fmt.Errorf("read limits config: %w", err)
	}
	return ParseLimits(data)
}

// ParseLimits validates and parses limits config data from YAML bytes.
func ParseLimits(data []byte) (*LimitsConfig, error) {
	if len(data) == 0 {
		return defaultLimits(), nil
	}
	if err := validateConfigSchema("limits", limitsSchemaFile, data); err != nil {
		return defaultLimits(), err
	}
	var cfg LimitsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultLimits(), fmt.Errorf("parse limits config: %w", err)
	}
	if cfg.Workflows == nil {
		cfg.Workflows = map[string]WorkflowLimit{}
	}
	return &cfg, nil
}

// TimeoutFor resolves the invocation timeout for a workflow: per-workflow
// override, then the file default, then the supplied fallback.
func (c *LimitsConfig) TimeoutFor(workflowID string, fallback time.Duration) time.Duration {
	if c == nil {
		return fallback
	}
	if limit, ok := c.Workflows[workflowID]; ok && limit.InvocationTimeoutSeconds > 0 {
		return time.Duration(limit.InvocationTimeoutSeconds) * time.Second
	}
	if c.Defaults.InvocationTimeoutSeconds > 0 {
		return time.Duration(c.Defaults.InvocationTimeoutSeconds) * time.Second
	}
	return fallback
}

func defaultLimits() *LimitsConfig {
	return &LimitsConfig{
		Version:   1,
		Workflows: map[string]WorkflowLimit{},
	}
}
