package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "gatekeeper/pkg/errors"
)

// MemoryStore keeps rules per group in insertion order, which doubles as the
// stable tiebreak for equal priorities.
type MemoryStore struct {
	mu    sync.RWMutex
	byGrp map[string][]Rule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byGrp: make(map[string][]Rule)}
}

func (s *MemoryStore) GetRules(_ context.Context, groupID string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byGrp[groupID]
	out := make([]Rule, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) GetRule(_ context.Context, groupID, ruleID string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.byGrp[groupID] {
		if rule.ID == ruleID {
			r := rule
			return &r, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
}

func (s *MemoryStore) SaveRule(_ context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	for _, existing := range s.byGrp[rule.GroupID] {
		if existing.ID == rule.ID {
			return pkgerrors.ErrConflict.WithDetail("message", fmt.Sprintf("rule %q already exists in group %q", rule.ID, rule.GroupID))
		}
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.byGrp[rule.GroupID] = append(s.byGrp[rule.GroupID], *rule)
	return nil
}

func (s *MemoryStore) UpdateRule(_ context.Context, groupID, ruleID string, update RuleUpdate) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byGrp[groupID]
	for i := range stored {
		if stored[i].ID == ruleID {
			update.ApplyTo(&stored[i])
			stored[i].UpdatedAt = time.Now()
			r := stored[i]
			return &r, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
}

func (s *MemoryStore) DeleteRule(_ context.Context, groupID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byGrp[groupID]
	for i := range stored {
		if stored[i].ID == ruleID {
			s.byGrp[groupID] = append(stored[:i], stored[i+1:]...)
			return nil
		}
	}
	return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
}
