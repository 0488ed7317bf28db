package audit

import (
	"context"
	"sync"
)

// NopRecorder drops decisions. Used when no decision store is configured.
type NopRecorder struct{}

func (NopRecorder) RecordDecision(context.Context, Decision) error { return nil }

func (NopRecorder) ListDecisions(context.Context, DecisionFilter) ([]Decision, error) {
	return nil, nil
}

// MemoryRecorder keeps decisions in memory, newest first. Test helper.
type MemoryRecorder struct {
	mu        sync.RWMutex
	decisions []Decision
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) RecordDecision(_ context.Context, decision Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append([]Decision{decision}, r.decisions...)
	return nil
}

func (r *MemoryRecorder) ListDecisions(_ context.Context, filter DecisionFilter) ([]Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Decision
	for _, d := range r.decisions {
		if filter.GroupID != "" && d.GroupID != filter.GroupID {
			continue
		}
		if filter.UserID != "" && d.UserID != filter.UserID {
			continue
		}
		if filter.Approved != nil && d.Approved != *filter.Approved {
			continue
		}
		out = append(out, d)
		if filter.Limit > 0 && int64(len(out)) >= filter.Limit {
			break
		}
	}
	return out, nil
}
