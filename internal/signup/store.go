package signup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic-portal-server/internal/cache"
)

const (
	flowKeyPrefix = "signup-flow:"
	lockKeyPrefix = "signup-flow-lock:"

	// lockTTL bounds how long a crashed submission can keep a flow busy.
	lockTTL = 2 * time.Minute
)

// FlowStore keeps flow snapshots in the KV store. A flow that is not touched
// for ttl is gone.
type FlowStore struct {
	kv  cache.KV
	ttl time.Duration
}

func NewFlowStore(kv cache.KV, ttl time.Duration) *FlowStore {
	return &FlowStore{kv: kv, ttl: ttl}
}

func (s *FlowStore) Save(ctx context.Context, f *Flow) error {
	payload, err := json.Marshal(f.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode signup flow: %w", err)
	}
	if err := s.kv.Set(ctx, flowKeyPrefix+f.ID, string(payload), s.ttl); err != nil {
		return fmt.Errorf("failed to save signup flow: %w", err)
	}
	return nil
}

func (s *FlowStore) Load(ctx context.Context, id string) (*Flow, error) {
	raw, err := s.kv.Get(ctx, flowKeyPrefix+id)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signup flow: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode signup flow: %w", err)
	}
	return FromSnapshot(snap)
}

func (s *FlowStore) Delete(ctx context.Context, id string) error {
	return s.kv.Del(ctx, flowKeyPrefix+id)
}

// Lock marks the flow as loading. It fails with ErrBusy while another
// submission holds the lock.
func (s *FlowStore) Lock(ctx context.Context, id string) (unlock func(), err error) {
	key := lockKeyPrefix + id
	ok, err := s.kv.SetNX(ctx, key, "1", lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock signup flow: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		// the request context may already be cancelled
		_ = s.kv.Del(context.Background(), key)
	}, nil
}
