package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/bus"
	"github.com/spacenew/triggerflow/core/infra/logging"
	"github.com/spacenew/triggerflow/core/workflow"
)

// Publisher is the slice of the event bus the service handler needs.
type Publisher interface {
	PublishTo(subject string, e event.Event) error
}

// RegisterBuiltins wires the shipped action handlers into a registry:
// notification, system, metrics and service. The service handler publishes
// through pub; with a nil pub it still registers and fails at dispatch time,
// so the failure shows up on the invocation record instead of at boot.
func RegisterBuiltins(reg *workflow.HandlerRegistry, pub Publisher) error {
	if err := reg.Register("notification", NotificationHandler()); err != nil {
		return err
	}
	if err := reg.Register("system", SystemHandler()); err != nil {
		return err
	}
	if err := reg.Register("metrics", MetricsHandler()); err != nil {
		return err
	}
	if err := reg.Register("service", ServiceHandler(pub)); err != nil {
		return err
	}
	return nil
}

// NotificationHandler logs the resolved message for a target/channel pair.
// Deployments that deliver for real replace this with their own handler
// under the same action type.
func NotificationHandler() workflow.ActionHandler {
	return func(ctx context.Context, action workflow.ResolvedAction) (map[string]any, error) {
		msg, _ := action.Data["message"].(string)
		if msg == "" {
			return nil, fmt.Errorf("notification %s: message required", action.ID)
		}
		logging.Info("notifier", "notification sent",
			"action_id", action.ID, "target", action.Target, "channel", action.Channel, "message", msg)
		return map[string]any{
			"delivered": true,
			"target":    action.Target,
			"channel":   action.Channel,
			"message":   msg,
		}, nil
	}
}

// SystemHandler writes action data into the engine log.
func SystemHandler() workflow.ActionHandler {
	return func(ctx context.Context, action workflow.ResolvedAction) (map[string]any, error) {
		msg, _ := action.Data["message"].(string)
		level, _ := action.Data["level"].(string)
		if level == "error" {
			logging.Error("system-action", msg, "action_id", action.ID)
		} else {
			logging.Info("system-action", msg, "action_id", action.ID)
		}
		return map[string]any{"logged": true}, nil
	}
}

var (
	actionCounterOnce sync.Once
	actionCounters    *prometheus.CounterVec
)

func actionCounterVec() *prometheus.CounterVec {
	actionCounterOnce.Do(func() {
		actionCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triggerflow",
			Name:      "action_counters_total",
			Help:      "Counters incremented by workflow metrics actions.",
		}, []string{"name"})
		prometheus.MustRegister(actionCounters)
	})
	return actionCounters
}

// MetricsHandler increments a named Prometheus counter. Data: "name"
// (required), "value" (optional positive delta, default 1).
func MetricsHandler() workflow.ActionHandler {
	return func(ctx context.Context, action workflow.ResolvedAction) (map[string]any, error) {
		name, _ := action.Data["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("metrics %s: name required", action.ID)
		}
		value := 1.0
		if v, ok := action.Data["value"].(float64); ok {
			value = v
		}
		if value <= 0 {
			return nil, fmt.Errorf("metrics %s: value must be positive, got %v", action.ID, value)
		}
		actionCounterVec().WithLabelValues(name).Add(value)
		return map[string]any{"name": name, "value": value}, nil
	}
}

// ServiceHandler forwards the resolved action data to a named service by
// publishing a request event on tf.service.<target>.
func ServiceHandler(pub Publisher) workflow.ActionHandler {
	return func(ctx context.Context, action workflow.ResolvedAction) (map[string]any, error) {
		if pub == nil {
			return nil, fmt.Errorf("service %s: event bus not configured", action.ID)
		}
		if action.Target == "" {
			return nil, fmt.Errorf("service %s: target required", action.ID)
		}
		subject := bus.ServiceSubject(action.Target)
		payload := make(map[string]any, len(action.Data)+2)
		for k, v := range action.Data {
			payload[k] = v
		}
		payload["action_id"] = action.ID
		payload["target"] = action.Target

		evt := event.New("service.request", payload)
		if err := pub.PublishTo(subject, evt); err != nil {
			return nil, fmt.Errorf("publish %s: %w", subject, err)
		}
		return map[string]any{"published": true, "subject": subject, "event_id": evt.ID}, nil
	}
}
