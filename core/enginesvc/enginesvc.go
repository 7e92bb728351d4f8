// Package enginesvc wires the workflow engine together with its bus,
// persistence and operational surfaces and runs it as a long-lived service.
package enginesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacenew/triggerflow/core/actions"
	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/bus"
	"github.com/spacenew/triggerflow/core/infra/config"
	"github.com/spacenew/triggerflow/core/infra/logging"
	"github.com/spacenew/triggerflow/core/infra/metrics"
	"github.com/spacenew/triggerflow/core/ops"
	"github.com/spacenew/triggerflow/core/workflow"
)

const (
	component   = "engine"
	serviceName = "triggerflow-engine"

	metricsNamespace       = "triggerflow"
	memoryBusBuffer        = 256
	redisConnectTimeout    = 5 * time.Second
	eventAppendTimeout     = 2 * time.Second
	defaultShutdownTimeout = 3 * time.Second
)

// Outcome event types published to bus.SubjectInvocations after every
// invocation, so downstream consumers can react without scraping the API.
const (
	EventInvocationCompleted = "workflow.invocation.completed"
	EventInvocationFailed    = "workflow.invocation.failed"
)

// Run starts the engine service and blocks until SIGINT/SIGTERM.
func Run(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	limits, err := config.LoadLimits(cfg.LimitsPath)
	if err != nil {
		logging.Error(component, "load limits failed, using defaults", "path", cfg.LimitsPath, "error", err)
	}

	registry := workflow.NewRegistry()
	loader := workflow.NewLoader(cfg.WorkflowDir, registry).WithInterval(cfg.ReloadInterval)
	loaded, err := loader.LoadOnce()
	if err != nil {
		logging.Error(component, "initial workflow sweep failed", "dir", cfg.WorkflowDir, "error", err)
	}
	logging.Info(component, "workflows loaded", "dir", cfg.WorkflowDir, "count", loaded)

	var evbus bus.EventBus
	switch cfg.BusMode {
	case config.BusModeNATS:
		nb, err := bus.NewNatsBus(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		evbus = nb
	case config.BusModeMemory:
		evbus = bus.NewMemoryBus(memoryBusBuffer)
	default:
		return fmt.Errorf("unknown bus mode %q", cfg.BusMode)
	}
	defer evbus.Close()

	handlers := workflow.NewHandlerRegistry()
	if err := actions.RegisterBuiltins(handlers, evbus); err != nil {
		return fmt.Errorf("register builtin actions: %w", err)
	}

	var store *workflow.RedisStore
	if cfg.RedisURL != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		store, err = workflow.NewRedisInvocationStore(connectCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis invocation store: %w", err)
		}
		defer store.Close()
	}

	prom := metrics.NewProm(metricsNamespace)
	eng := workflow.NewEngine(registry, handlers).
		WithMetrics(prom).
		WithMaxConcurrent(cfg.MaxConcurrent).
		WithTimeout(cfg.InvocationTimeout).
		WithTimeoutFor(func(workflowID string) time.Duration {
			return limits.TimeoutFor(workflowID, cfg.InvocationTimeout)
		})
	if store != nil {
		eng = eng.WithStore(store)
	}

	history := event.NewHistory(cfg.HistorySize)
	tail := ops.NewTail(ops.DefaultTailSize)
	hub := ops.NewFeedHub(metrics.NewFeedProm(metricsNamespace))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	if cfg.ReloadInterval > 0 {
		go loader.Run(ctx)
	}

	eng.OnInvocation = func(inv workflow.Invocation) {
		tail.Add(inv)
		hub.Broadcast(inv)
		if err := evbus.PublishTo(bus.SubjectInvocations, outcomeEvent(inv)); err != nil {
			logging.Error(component, "publish invocation outcome failed", "invocation_id", inv.ID, "error", err)
		}
	}

	if err := evbus.Subscribe(bus.SubjectAllEvents, bus.QueueEngine, func(e event.Event) error {
		history.Add(e)
		if store != nil {
			appendCtx, cancel := context.WithTimeout(context.Background(), eventAppendTimeout)
			if err := store.AppendEvent(appendCtx, e); err != nil {
				logging.Error(component, "append event to timeline failed", "event_id", e.ID, "error", err)
			}
			cancel()
		}
		return eng.HandleEvent(ctx, e)
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", bus.SubjectAllEvents, err)
	}

	deps := ops.Deps{
		Registry: registry,
		History:  history,
		Tail:     tail,
		Hub:      hub,
		Engine:   eng,
		Service:  serviceName,
	}
	if store != nil {
		deps.Store = store
	}
	httpSrv := ops.NewServer(cfg.OpsAddr, deps).Start()

	logging.Info(component, "started",
		"bus", cfg.BusMode, "ops", cfg.OpsAddr,
		"workflows", loaded, "max_concurrent", cfg.MaxConcurrent)

	<-ctx.Done()
	logging.Info(component, "shutting down", "in_flight", eng.InFlight())

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancelDrain()
	if err := eng.Drain(drainCtx); err != nil {
		logging.Error(component, "drain timed out", "in_flight", eng.InFlight(), "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancelShutdown()
	_ = httpSrv.Shutdown(shutdownCtx)

	logging.Info(component, "stopped")
	return nil
}

// outcomeEvent converts a finished invocation into a bus event. The record is
// round-tripped through JSON so the payload mirrors the API representation.
func outcomeEvent(inv workflow.Invocation) event.Event {
	eventType := EventInvocationCompleted
	if inv.State != workflow.StateCompleted {
		eventType = EventInvocationFailed
	}
	payload := map[string]interface{}{}
	if data, err := json.Marshal(inv); err == nil {
		_ = json.Unmarshal(data, &payload)
	}
	return event.New(eventType, payload)
}
