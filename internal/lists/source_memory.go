package lists

import (
	"context"
	"sync"
)

// MemorySource is a process-local Source for tests and single-node setups
// without redis.
type MemorySource struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemorySource() *MemorySource {
	return &MemorySource{sets: make(map[string]map[string]struct{})}
}

func (s *MemorySource) Add(_ context.Context, kind Kind, groupID string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(kind, groupID)
	if s.sets[k] == nil {
		s.sets[k] = make(map[string]struct{})
	}
	added := 0
	for _, m := range members {
		if _, ok := s.sets[k][m]; !ok {
			s.sets[k][m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *MemorySource) Remove(_ context.Context, kind Kind, groupID string, members ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(kind, groupID)
	removed := 0
	for _, m := range members {
		if _, ok := s.sets[k][m]; ok {
			delete(s.sets[k], m)
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySource) Members(_ context.Context, kind Kind, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.sets[key(kind, groupID)]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

func (s *MemorySource) Contains(_ context.Context, kind Kind, groupID, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sets[key(kind, groupID)][member]
	return ok, nil
}
