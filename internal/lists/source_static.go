package lists

import (
	"context"

	pkgerrors "gatekeeper/pkg/errors"
)

// StaticSource serves the lists baked into the static configuration. It is
// read-only and group-agnostic: every group sees the same members. Used both
// when no redis is configured and as the fallback behind FallbackSource.
type StaticSource struct {
	whitelist     map[string]struct{}
	nameWhitelist map[string]struct{}
}

func NewStaticSource(whitelist, nameWhitelist []string) *StaticSource {
	s := &StaticSource{
		whitelist:     make(map[string]struct{}, len(whitelist)),
		nameWhitelist: make(map[string]struct{}, len(nameWhitelist)),
	}
	for _, m := range whitelist {
		s.whitelist[m] = struct{}{}
	}
	for _, m := range nameWhitelist {
		s.nameWhitelist[m] = struct{}{}
	}
	return s
}

func (s *StaticSource) set(kind Kind) map[string]struct{} {
	switch kind {
	case KindNameWhitelist:
		return s.nameWhitelist
	case KindWhitelist:
		return s.whitelist
	default:
		// Keyword lists have no static fallback; the engine unions the
		// configured keywords itself.
		return nil
	}
}

func (s *StaticSource) Add(context.Context, Kind, string, ...string) (int, error) {
	return 0, pkgerrors.ErrStoreDisabled.WithDetail("message", "static list source is read-only")
}

func (s *StaticSource) Remove(context.Context, Kind, string, ...string) (int, error) {
	return 0, pkgerrors.ErrStoreDisabled.WithDetail("message", "static list source is read-only")
}

func (s *StaticSource) Members(_ context.Context, kind Kind, _ string) ([]string, error) {
	set := s.set(kind)
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

func (s *StaticSource) Contains(_ context.Context, kind Kind, _ string, member string) (bool, error) {
	_, ok := s.set(kind)[member]
	return ok, nil
}
