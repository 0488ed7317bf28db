package config

import (
	"context"
	"encoding/json"
	"fmt"
)

// GroupOverrides is a partial moderation config: top-level JSON keys of
// ModerationConfig mapped to their raw persisted values.
type GroupOverrides map[string]json.RawMessage

// GroupStore persists per-group moderation overrides. A nil result from
// LoadGroupConfig means the group has no overrides.
type GroupStore interface {
	SaveGroupConfig(ctx context.Context, groupID string, overrides GroupOverrides) error
	LoadGroupConfig(ctx context.Context, groupID string) (GroupOverrides, error)
}

// Overlay applies persisted per-group overrides on top of the static
// moderation config. The merge is shallow: each persisted top-level key
// replaces the static value wholesale. Callers recompute this per request;
// the result is never cached because operators change overrides live.
func Overlay(static ModerationConfig, overrides GroupOverrides) (ModerationConfig, error) {
	if len(overrides) == 0 {
		return static, nil
	}

	base, err := json.Marshal(static)
	if err != nil {
		return static, fmt.Errorf("failed to marshal static config: %w", err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return static, fmt.Errorf("failed to decode static config: %w", err)
	}

	for key, value := range overrides {
		merged[key] = value
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return static, fmt.Errorf("failed to merge config: %w", err)
	}

	var effective ModerationConfig
	if err := json.Unmarshal(raw, &effective); err != nil {
		return static, fmt.Errorf("failed to decode merged config: %w", err)
	}

	return effective, nil
}
