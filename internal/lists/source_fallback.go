package lists

import (
	"context"

	"gatekeeper/internal/logger"
	"gatekeeper/pkg/metrics"
)

// FallbackSource reads through the primary source and, when it fails, answers
// from the static fallback so moderation keeps working during a list store
// outage. Writes always go to the primary; a failed write is a real error.
type FallbackSource struct {
	primary  Source
	fallback Source
	log      logger.Logger
}

func NewFallbackSource(primary, fallback Source, log logger.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, fallback: fallback, log: log}
}

func (s *FallbackSource) Add(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	return s.primary.Add(ctx, kind, groupID, members...)
}

func (s *FallbackSource) Remove(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	return s.primary.Remove(ctx, kind, groupID, members...)
}

func (s *FallbackSource) Members(ctx context.Context, kind Kind, groupID string) ([]string, error) {
	members, err := s.primary.Members(ctx, kind, groupID)
	if err != nil {
		s.noteFallback(ctx, kind, groupID, err)
		return s.fallback.Members(ctx, kind, groupID)
	}
	return members, nil
}

func (s *FallbackSource) Contains(ctx context.Context, kind Kind, groupID, member string) (bool, error) {
	ok, err := s.primary.Contains(ctx, kind, groupID, member)
	if err != nil {
		s.noteFallback(ctx, kind, groupID, err)
		return s.fallback.Contains(ctx, kind, groupID, member)
	}
	return ok, nil
}

func (s *FallbackSource) noteFallback(ctx context.Context, kind Kind, groupID string, err error) {
	metrics.ListSourceFallbacks.WithLabelValues(string(kind)).Inc()
	s.log.WarnwCtx(ctx, "list source unavailable, answering from static fallback",
		"kind", string(kind),
		"group_id", groupID,
		"error", err,
	)
}
