package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/spacenew/triggerflow/sdk/client"
)

const (
	defaultOpsURL  = "http://localhost:8090"
	defaultNatsURL = "nats://localhost:4222"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "publish":
		runPublishCmd(args)
	case "validate":
		runValidateCmd(args)
	case "workflows":
		runWorkflowsCmd(args)
	case "invocations":
		runInvocationsCmd(args)
	case "events":
		runEventsCmd(args)
	case "watch":
		runWatchCmd(args)
	case "health":
		runHealthCmd(args)
	default:
		usage()
		os.Exit(1)
	}
}

func runWorkflowsCmd(args []string) {
	fs := newFlagSet("workflows")
	fs.ParseArgs(args)
	client := newClient(*fs.ops)
	if fs.NArg() > 0 {
		def, err := client.GetWorkflow(context.Background(), fs.Arg(0))
		check(err)
		printJSON(def)
		return
	}
	defs, err := client.ListWorkflows(context.Background())
	check(err)
	printJSON(defs)
}

func runInvocationsCmd(args []string) {
	fs := newFlagSet("invocations")
	workflowID := fs.String("workflow", "", "filter by workflow id")
	limit := fs.Int("limit", 0, "max records to return")
	fs.ParseArgs(args)

	client := newClient(*fs.ops)
	records, err := client.ListInvocations(context.Background(), sdk.InvocationQuery{
		WorkflowID: *workflowID,
		Limit:      *limit,
	})
	check(err)
	printJSON(records)
}

func runEventsCmd(args []string) {
	fs := newFlagSet("events")
	since := fs.String("since", "", "only events after this RFC3339 instant")
	limit := fs.Int("limit", 0, "max events to return")
	fs.ParseArgs(args)

	query := sdk.EventQuery{Limit: *limit}
	if *since != "" {
		parsed, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fail(fmt.Sprintf("invalid --since value: %v", err))
		}
		query.Since = parsed
	}

	client := newClient(*fs.ops)
	events, err := client.ListEvents(context.Background(), query)
	check(err)
	printJSON(events)
}

func runHealthCmd(args []string) {
	fs := newFlagSet("health")
	fs.ParseArgs(args)
	client := newClient(*fs.ops)
	health, err := client.Health(context.Background())
	check(err)
	printJSON(health)
}

type flagSet struct {
	*flag.FlagSet
	ops  *string
	nats *string
}

func newFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	ops := fs.String("ops", envOr("TRIGGERFLOW_OPS_URL", defaultOpsURL), "engine ops base url")
	nats := fs.String("nats", envOr("NATS_URL", defaultNatsURL), "nats server url")
	return &flagSet{FlagSet: fs, ops: ops, nats: nats}
}

func (fs *flagSet) ParseArgs(args []string) {
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
}

func newClient(opsURL string) *sdk.Client {
	return sdk.New(opsURL)
}

func loadJSON(path string, out any) {
	// #nosec G304 -- CLI explicitly reads local files provided by the operator.
	data, err := os.ReadFile(path)
	check(err)
	if err := json.Unmarshal(data, out); err != nil {
		fail(fmt.Sprintf("invalid json: %v", err))
	}
}

func printJSON(value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	check(err)
	fmt.Println(string(data))
}

func usage() {
	fmt.Print(`triggerflowctl - TriggerFlow engine CLI

Usage:
  triggerflowctl publish <event_type> [--payload payload.json] [--field k=v ...]
  triggerflowctl validate <workflow.json> [...]
  triggerflowctl workflows [workflow_id]
  triggerflowctl invocations [--workflow id] [--limit n]
  triggerflowctl events [--since rfc3339] [--limit n]
  triggerflowctl watch
  triggerflowctl health

Global flags:
  --ops    Engine ops base URL (default from TRIGGERFLOW_OPS_URL)
  --nats   NATS server URL (default from NATS_URL)
`)
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func check(err error) {
	if err != nil {
		fail(err.Error())
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
