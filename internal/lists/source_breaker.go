package lists

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"gatekeeper/internal/config"
	"gatekeeper/pkg/circuitbreaker"
)

// BreakerSource shields the list backend with a circuit breaker so a dead
// redis fails fast instead of stalling every join request on timeouts.
type BreakerSource struct {
	source Source
	cb     *circuitbreaker.Wrapper
}

// WrapWithBreaker decorates source when the breaker is enabled and returns it
// untouched otherwise.
func WrapWithBreaker(source Source, cfg config.CircuitBreakerConfig) Source {
	if !cfg.Enabled {
		return source
	}

	cbConfig := circuitbreaker.DefaultConfig("list-source")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &BreakerSource{source: source, cb: circuitbreaker.NewWrapper(cbConfig)}
}

func (s *BreakerSource) execInt(ctx context.Context, fn func() (interface{}, error)) (int, error) {
	result, err := s.cb.ExecuteWithContext(ctx, fn)
	s.cb.RecordRequest(err == nil)
	if err != nil {
		if s.cb.IsOpen() {
			return 0, fmt.Errorf("circuit breaker is open for list-source: %w", err)
		}
		return 0, err
	}
	n, ok := result.(int)
	if !ok {
		return 0, fmt.Errorf("list source returned invalid result type")
	}
	return n, nil
}

func (s *BreakerSource) Add(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	return s.execInt(ctx, func() (interface{}, error) {
		return s.source.Add(ctx, kind, groupID, members...)
	})
}

func (s *BreakerSource) Remove(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	return s.execInt(ctx, func() (interface{}, error) {
		return s.source.Remove(ctx, kind, groupID, members...)
	})
}

func (s *BreakerSource) Members(ctx context.Context, kind Kind, groupID string) ([]string, error) {
	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.source.Members(ctx, kind, groupID)
	})
	s.cb.RecordRequest(err == nil)
	if err != nil {
		if s.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for list-source: %w", err)
		}
		return nil, err
	}
	members, ok := result.([]string)
	if !ok {
		return nil, fmt.Errorf("list source returned invalid result type")
	}
	return members, nil
}

func (s *BreakerSource) Contains(ctx context.Context, kind Kind, groupID, member string) (bool, error) {
	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.source.Contains(ctx, kind, groupID, member)
	})
	s.cb.RecordRequest(err == nil)
	if err != nil {
		if s.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for list-source: %w", err)
		}
		return false, err
	}
	ok, valid := result.(bool)
	if !valid {
		return false, fmt.Errorf("list source returned invalid result type")
	}
	return ok, nil
}

func (s *BreakerSource) State() string {
	return s.cb.State().String()
}
