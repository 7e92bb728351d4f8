package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/bus"
)

func runPublishCmd(args []string) {
	fs := newFlagSet("publish")
	payloadFile := fs.String("payload", "", "payload json file")
	var fields fieldFlags
	fs.Var(&fields, "field", "payload field as key=value (repeatable)")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("event type required")
	}
	eventType := fs.Arg(0)

	payload := map[string]any{}
	if *payloadFile != "" {
		loadJSON(*payloadFile, &payload)
	}
	for k, v := range fields.values {
		payload[k] = v
	}

	nb, err := bus.NewNatsBus(*fs.nats)
	check(err)
	defer nb.Close()

	e := event.New(eventType, payload)
	check(nb.PublishEvent(e))
	fmt.Println(e.ID)
}

// fieldFlags collects repeated --field key=value pairs. Values that parse as
// JSON keep their type, anything else stays a string.
type fieldFlags struct {
	values map[string]any
}

func (f *fieldFlags) String() string { return "" }

func (f *fieldFlags) Set(raw string) error {
	key, val, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("field must be key=value: %q", raw)
	}
	if f.values == nil {
		f.values = map[string]any{}
	}
	var parsed any
	if err := json.Unmarshal([]byte(val), &parsed); err == nil {
		f.values[key] = parsed
	} else {
		f.values[key] = val
	}
	return nil
}
