package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "gatekeeper/pkg/errors"
)

// PostgresGroupStore keeps one row per (group, top-level key) so a partial
// save never clobbers keys it does not mention.
type PostgresGroupStore struct {
	db *sql.DB
}

func NewPostgresGroupStore(db *sql.DB) *PostgresGroupStore {
	return &PostgresGroupStore{db: db}
}

func (s *PostgresGroupStore) SaveGroupConfig(ctx context.Context, groupID string, overrides GroupOverrides) error {
	query := `
		INSERT INTO group_config (group_id, config_key, config_value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, config_key)
		DO UPDATE SET config_value = EXCLUDED.config_value, updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	for key, value := range overrides {
		if _, err := s.db.ExecContext(ctx, query, groupID, key, []byte(value), now); err != nil {
			return pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to save config key %q: %w", key, err))
		}
	}

	return nil
}

func (s *PostgresGroupStore) LoadGroupConfig(ctx context.Context, groupID string) (GroupOverrides, error) {
	query := `
		SELECT config_key, config_value
		FROM group_config
		WHERE group_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to load group config: %w", err))
	}
	defer rows.Close()

	overrides := GroupOverrides{}
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to scan config row: %w", err))
		}
		if !json.Valid(value) {
			continue
		}
		overrides[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("rows iteration error: %w", err))
	}

	if len(overrides) == 0 {
		return nil, nil
	}
	return overrides, nil
}

// DisabledGroupStore serves deployments without database backing: loads find
// nothing and saves report that storage is off.
type DisabledGroupStore struct{}

func (DisabledGroupStore) SaveGroupConfig(context.Context, string, GroupOverrides) error {
	return pkgerrors.ErrStoreDisabled
}

func (DisabledGroupStore) LoadGroupConfig(context.Context, string) (GroupOverrides, error) {
	return nil, nil
}
