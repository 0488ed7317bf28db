package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "gatekeeper/pkg/errors"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveRule(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	condJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode condition: %w", err)
	}

	query := `
		INSERT INTO moderation_rules (id, group_id, name, priority, enabled, condition, action, message, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID, rule.GroupID, rule.Name, rule.Priority, rule.Enabled,
		condJSON, string(rule.Action), rule.Message, rule.Description,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule %q already exists in group %q", rule.ID, rule.GroupID))
		}
		return pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to create rule: %w", err))
	}

	return nil
}

func (s *PostgresStore) GetRule(ctx context.Context, groupID, ruleID string) (*Rule, error) {
	query := `
		SELECT id, group_id, name, priority, enabled, condition, action, message, description, created_at, updated_at
		FROM moderation_rules
		WHERE group_id = $1 AND id = $2
	`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, groupID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
	}
	if err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to get rule: %w", err))
	}

	return rule, nil
}

// GetRules returns the group's rules ordered by (priority, created_at, id) so
// equal-priority rules keep a stable relative order across retrievals.
func (s *PostgresStore) GetRules(ctx context.Context, groupID string) ([]Rule, error) {
	query := `
		SELECT id, group_id, name, priority, enabled, condition, action, message, description, created_at, updated_at
		FROM moderation_rules
		WHERE group_id = $1
		ORDER BY priority ASC, created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to list rules: %w", err))
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to scan rule: %w", err))
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("rows iteration error: %w", err))
	}

	return result, nil
}

// CountEnabled reports the number of enabled rules across all groups. The
// moderation service feeds the active-rules gauge from it.
func (s *PostgresStore) CountEnabled(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_rules WHERE enabled`).Scan(&count)
	if err != nil {
		return 0, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to count rules: %w", err))
	}
	return count, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, groupID, ruleID string, update RuleUpdate) (*Rule, error) {
	rule, err := s.GetRule(ctx, groupID, ruleID)
	if err != nil {
		return nil, err
	}

	update.ApplyTo(rule)
	rule.UpdatedAt = time.Now()

	condJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode condition: %w", err)
	}

	query := `
		UPDATE moderation_rules
		SET name = $1, priority = $2, enabled = $3, condition = $4, action = $5, message = $6, description = $7, updated_at = $8
		WHERE group_id = $9 AND id = $10
	`

	res, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Priority, rule.Enabled, condJSON, string(rule.Action),
		rule.Message, rule.Description, rule.UpdatedAt, groupID, ruleID,
	)
	if err != nil {
		return nil, pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to update rule: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
	}

	return rule, nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, groupID, ruleID string) error {
	query := `DELETE FROM moderation_rules WHERE group_id = $1 AND id = $2`

	res, err := s.db.ExecContext(ctx, query, groupID, ruleID)
	if err != nil {
		return pkgerrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to delete rule: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule %q not found in group %q", ruleID, groupID))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var condJSON []byte
	var action string

	err := row.Scan(
		&rule.ID, &rule.GroupID, &rule.Name, &rule.Priority, &rule.Enabled,
		&condJSON, &action, &rule.Message, &rule.Description,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(condJSON, &rule.Condition); err != nil {
		return nil, fmt.Errorf("failed to decode condition: %w", err)
	}
	rule.Action = Action(action)

	return &rule, nil
}
