package main

import (
	"fmt"
	"os"

	"github.com/spacenew/triggerflow/core/workflow"
)

func runValidateCmd(args []string) {
	fs := newFlagSet("validate")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("workflow file required")
	}

	failed := false
	for _, path := range fs.Args() {
		// #nosec G304 -- CLI explicitly reads local files provided by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		def, err := workflow.Parse(data)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: ok (%s)\n", path, def.ID)
	}
	if failed {
		os.Exit(1)
	}
}
