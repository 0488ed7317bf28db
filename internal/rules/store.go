package rules

import (
	"context"

	pkgerrors "gatekeeper/pkg/errors"
)

// Store is the rule persistence boundary. Implementations must return rules
// in a stable order for equal priorities (the engine stable-sorts on top of
// store order, so store order is what breaks priority ties).
type Store interface {
	GetRules(ctx context.Context, groupID string) ([]Rule, error)
	GetRule(ctx context.Context, groupID, ruleID string) (*Rule, error)
	SaveRule(ctx context.Context, rule *Rule) error
	UpdateRule(ctx context.Context, groupID, ruleID string, update RuleUpdate) (*Rule, error)
	DeleteRule(ctx context.Context, groupID, ruleID string) error
}

// DisabledStore stands in when rule storage is turned off: reads come back
// empty, mutations fail with the storage-disabled error.
type DisabledStore struct{}

func (DisabledStore) GetRules(context.Context, string) ([]Rule, error) {
	return nil, nil
}

func (DisabledStore) GetRule(context.Context, string, string) (*Rule, error) {
	return nil, pkgerrors.ErrStoreDisabled
}

func (DisabledStore) SaveRule(context.Context, *Rule) error {
	return pkgerrors.ErrStoreDisabled
}

func (DisabledStore) UpdateRule(context.Context, string, string, RuleUpdate) (*Rule, error) {
	return nil, pkgerrors.ErrStoreDisabled
}

func (DisabledStore) DeleteRule(context.Context, string, string) error {
	return pkgerrors.ErrStoreDisabled
}
