package main

import (
	"log"

	"github.com/spacenew/triggerflow/core/enginesvc"
	"github.com/spacenew/triggerflow/core/infra/buildinfo"
	"github.com/spacenew/triggerflow/core/infra/config"
)

func main() {
	log.Println("triggerflow engine starting...")
	buildinfo.Log("triggerflow-engine")
	cfg := config.Load()
	if err := enginesvc.Run(cfg); err != nil {
		log.Fatalf("engine error: %v", err)
	}
}
