package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/buildinfo"
	"github.com/spacenew/triggerflow/core/infra/logging"
	"github.com/spacenew/triggerflow/core/infra/metrics"
	"github.com/spacenew/triggerflow/core/workflow"
)

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultInvocationLimit = 50
	defaultEventLimit      = 100
	maxListLimit           = 500
)

// InvocationStore is the slice of the persistence layer the API reads from.
type InvocationStore interface {
	ListRecent(ctx context.Context, limit int64) ([]*workflow.Invocation, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int64) ([]*workflow.Invocation, error)
}

// EngineStatus exposes live engine state for the health payload.
type EngineStatus interface {
	InFlight() int
}

// Deps carries everything the ops server reads. Registry is required; the
// rest degrade gracefully when nil.
type Deps struct {
	Registry *workflow.Registry
	Store    InvocationStore
	History  *event.History
	Tail     *Tail
	Hub      *FeedHub
	Engine   EngineStatus
	Service  string
}

// Server serves the operational HTTP surface: health, Prometheus metrics,
// registry introspection, invocation history and the live feed.
type Server struct {
	addr    string
	deps    Deps
	started time.Time
}

// NewServer builds an ops server bound to addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Service == "" {
		deps.Service = "triggerflow-engine"
	}
	return &Server{addr: addr, deps: deps, started: time.Now().UTC()}
}

// Handler returns the routed HTTP handler, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /v1/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("GET /v1/invocations", s.handleListInvocations)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	if s.deps.Hub != nil {
		mux.HandleFunc("GET /v1/feed", s.deps.Hub.handleFeed)
	}
	return mux
}

// Start launches the server in the background and returns it for shutdown.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("ops", "http server error", "addr", s.addr, "error", err)
		}
	}()
	return srv
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":         "ok",
		"service":        s.deps.Service,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	for k, v := range buildinfo.Fields() {
		payload[k] = v
	}
	if s.deps.Registry != nil {
		payload["workflows"] = s.deps.Registry.Len()
	}
	if s.deps.Engine != nil {
		payload["in_flight"] = s.deps.Engine.InFlight()
	}
	if s.deps.Hub != nil {
		payload["feed_clients"] = s.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := []*workflow.WorkflowDefinition{}
	if s.deps.Registry != nil {
		defs = s.deps.Registry.Snapshot()
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.deps.Registry == nil {
		http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}
	def, ok := s.deps.Registry.Get(id)
	if !ok {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultInvocationLimit)
	workflowID := r.URL.Query().Get("workflow")

	if s.deps.Store != nil {
		var (
			records []*workflow.Invocation
			err     error
		)
		if workflowID != "" {
			records, err = s.deps.Store.ListByWorkflow(r.Context(), workflowID, int64(limit))
		} else {
			records, err = s.deps.Store.ListRecent(r.Context(), int64(limit))
		}
		if err != nil {
			logging.Error("ops", "list invocations failed", "error", err)
			http.Error(w, "list invocations failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	records := []workflow.Invocation{}
	if s.deps.Tail != nil {
		for _, inv := range s.deps.Tail.Recent(limit) {
			if workflowID != "" && inv.WorkflowID != workflowID {
				continue
			}
			records = append(records, inv)
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultEventLimit)
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	events := []event.Event{}
	if s.deps.History != nil {
		events = s.deps.History.Since(since, limit)
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
