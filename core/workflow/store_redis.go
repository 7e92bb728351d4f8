package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spacenew/triggerflow/core/event"
	"github.com/spacenew/triggerflow/core/infra/redisutil"
)

const (
	// invocationTTL bounds how long individual records live; the sorted set
	// indexes are trimmed by rank so they stay small even under load.
	invocationTTL      = 7 * 24 * time.Hour
	invocationIndexMax = 1000
	eventTimelineMax   = 1000
	defaultListLimit   = 50
)

// RedisStore persists finished invocation records for audit queries and the
// ops API.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisInvocationStore connects to Redis and returns an invocation store.
func NewRedisInvocationStore(ctx context.Context, url string) (*RedisStore, error) {
	client, err := redisutil.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// SaveInvocation writes one record and updates the recency indexes.
func (s *RedisStore) SaveInvocation(ctx context.Context, inv *Invocation) error {
	if inv == nil || inv.ID == "" || inv.WorkflowID == "" {
		return fmt.Errorf("invocation id and workflow id required")
	}
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invocation: %w", err)
	}

	score := float64(inv.StartedAt.UnixMilli())
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, invocationKey(inv.ID), payload, invocationTTL)
	pipe.ZAdd(ctx, invocationAllIndexKey(), redis.Z{Score: score, Member: inv.ID})
	pipe.ZAdd(ctx, invocationWorkflowIndexKey(inv.WorkflowID), redis.Z{Score: score, Member: inv.ID})
	pipe.ZAdd(ctx, invocationStateIndexKey(inv.State), redis.Z{Score: score, Member: inv.ID})
	pipe.ZRemRangeByRank(ctx, invocationAllIndexKey(), 0, -(invocationIndexMax + 1))
	pipe.ZRemRangeByRank(ctx, invocationWorkflowIndexKey(inv.WorkflowID), 0, -(invocationIndexMax + 1))
	pipe.ZRemRangeByRank(ctx, invocationStateIndexKey(inv.State), 0, -(invocationIndexMax + 1))
	_, err = pipe.Exec(ctx)
	return err
}

// GetInvocation returns a record by ID.
func (s *RedisStore) GetInvocation(ctx context.Context, id string) (*Invocation, error) {
	if id == "" {
		return nil, fmt.Errorf("id required")
	}
	data, err := s.client.Get(ctx, invocationKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invocation: %w", err)
	}
	return &inv, nil
}

// ListRecent returns the most recent invocations, newest first.
func (s *RedisStore) ListRecent(ctx context.Context, limit int64) ([]*Invocation, error) {
	return s.listByIndex(ctx, invocationAllIndexKey(), limit)
}

// ListByWorkflow returns the most recent invocations of one workflow,
// newest first.
func (s *RedisStore) ListByWorkflow(ctx context.Context, workflowID string, limit int64) ([]*Invocation, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow id required")
	}
	return s.listByIndex(ctx, invocationWorkflowIndexKey(workflowID), limit)
}

// ListIDsByState returns the most recent invocation IDs in a given terminal
// state, newest first.
func (s *RedisStore) ListIDsByState(ctx context.Context, state State, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ids, err := s.client.ZRevRange(ctx, invocationStateIndexKey(state), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *RedisStore) listByIndex(ctx context.Context, index string, limit int64) ([]*Invocation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ids, err := s.client.ZRevRange(ctx, index, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Invocation{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, invocationKey(id))
	}
	_, _ = pipe.Exec(ctx)

	out := make([]*Invocation, 0, len(ids))
	for _, id := range ids {
		cmd := cmds[id]
		if cmd == nil {
			continue
		}
		data, err := cmd.Bytes()
		if err != nil {
			// expired records may linger in the index until trimmed
			continue
		}
		var inv Invocation
		if err := json.Unmarshal(data, &inv); err != nil {
			continue
		}
		out = append(out, &inv)
	}
	return out, nil
}

// AppendEvent records an event on the global timeline for post-hoc review.
func (s *RedisStore) AppendEvent(ctx context.Context, e event.Event) error {
	data, err := event.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, eventTimelineKey(), data)
	pipe.LTrim(ctx, eventTimelineKey(), -eventTimelineMax, -1)
	_, err = pipe.Exec(ctx)
	return err
}

// ListEvents returns up to limit of the newest timeline events, oldest
// first.
func (s *RedisStore) ListEvents(ctx context.Context, limit int64) ([]event.Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	raw, err := s.client.LRange(ctx, eventTimelineKey(), -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(raw))
	for _, item := range raw {
		e, err := event.Unmarshal([]byte(item))
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func invocationKey(id string) string {
	return "tf:inv:" + id
}

func eventTimelineKey() string {
	return "tf:events:timeline"
}

func invocationAllIndexKey() string {
	return "tf:inv:index:all"
}

func invocationWorkflowIndexKey(workflowID string) string {
	return "tf:inv:index:wf:" + workflowID
}

func invocationStateIndexKey(state State) string {
	return "tf:inv:index:state:" + string(state)
}
