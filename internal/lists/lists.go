package lists

import (
	"context"

	"gatekeeper/internal/constants"
	pkgerrors "gatekeeper/pkg/errors"
)

// Kind selects which per-group list a Source call targets.
type Kind string

const (
	KindWhitelist         Kind = "whitelist"
	KindNameWhitelist     Kind = "name_whitelist"
	KindApprovalKeywords  Kind = "approval_keywords"
	KindRejectionKeywords Kind = "rejection_keywords"
)

// KeywordKind maps the API-facing keyword type ("approval"/"rejection") to
// its list kind.
func KeywordKind(keywordType string) (Kind, error) {
	switch keywordType {
	case constants.KeywordTypeApproval:
		return KindApprovalKeywords, nil
	case constants.KeywordTypeRejection:
		return KindRejectionKeywords, nil
	default:
		return "", pkgerrors.ErrValidation.WithDetail("message", "keyword type must be approval or rejection")
	}
}

// Source is the persisted list backend used by both the rule engine and the
// management API. Implementations must tolerate concurrent callers.
type Source interface {
	Add(ctx context.Context, kind Kind, groupID string, members ...string) (int, error)
	Remove(ctx context.Context, kind Kind, groupID string, members ...string) (int, error)
	Members(ctx context.Context, kind Kind, groupID string) ([]string, error)
	Contains(ctx context.Context, kind Kind, groupID, member string) (bool, error)
}

// BulkReport summarizes a bulk Add after input cleanup.
type BulkReport struct {
	Added      []string `json:"added"`
	Duplicates []string `json:"duplicates"`
	Invalid    []string `json:"invalid"`
}

func (r BulkReport) Total() int {
	return len(r.Added) + len(r.Duplicates) + len(r.Invalid)
}
