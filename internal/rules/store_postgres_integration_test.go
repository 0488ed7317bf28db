//go:build integration

package rules_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/rules"
	pkgerrors "gatekeeper/pkg/errors"
	"gatekeeper/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *rules.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../migrations/postgres")
	s.store = rules.NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background(), "moderation_rules"))
}

func keywordRule(groupID, name string, priority int) *rules.Rule {
	return &rules.Rule{
		GroupID:  groupID,
		Name:     name,
		Priority: priority,
		Enabled:  true,
		Condition: rules.Condition{
			Type:     rules.ConditionKeyword,
			Operator: rules.OpContains,
			Values:   []string{"广告"},
		},
		Action:  rules.ActionReject,
		Message: "申请被拒绝",
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()

	rule := keywordRule("g1", "block ads", 10)
	s.Require().NoError(s.store.SaveRule(ctx, rule))
	s.Require().NotEmpty(rule.ID)

	fetched, err := s.store.GetRule(ctx, "g1", rule.ID)
	s.Require().NoError(err)
	s.Equal(rule.Name, fetched.Name)
	s.Equal(rule.Condition, fetched.Condition)
	s.Equal(rules.ActionReject, fetched.Action)
	s.WithinDuration(rule.CreatedAt, fetched.CreatedAt, time.Second)
}

func (s *PostgresStoreSuite) TestGetRulesOrderIsStableForEqualPriorities() {
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		s.Require().NoError(s.store.SaveRule(ctx, keywordRule("g1", name, 10)))
		time.Sleep(5 * time.Millisecond)
	}
	s.Require().NoError(s.store.SaveRule(ctx, keywordRule("g1", "urgent", 1)))

	stored, err := s.store.GetRules(ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(stored, 4)

	s.Equal("urgent", stored[0].Name)
	s.Equal("first", stored[1].Name)
	s.Equal("second", stored[2].Name)
	s.Equal("third", stored[3].Name)

	again, err := s.store.GetRules(ctx, "g1")
	s.Require().NoError(err)
	s.Equal(stored, again)
}

func (s *PostgresStoreSuite) TestDuplicateIDConflicts() {
	ctx := context.Background()

	rule := keywordRule("g1", "block ads", 10)
	rule.ID = "r1"
	s.Require().NoError(s.store.SaveRule(ctx, rule))

	dup := keywordRule("g1", "other", 20)
	dup.ID = "r1"
	err := s.store.SaveRule(ctx, dup)
	s.True(pkgerrors.IsConflict(err))

	// Same ID in another group is fine.
	other := keywordRule("g2", "block ads", 10)
	other.ID = "r1"
	s.NoError(s.store.SaveRule(ctx, other))
}

func (s *PostgresStoreSuite) TestUpdatePartial() {
	ctx := context.Background()

	rule := keywordRule("g1", "block ads", 10)
	s.Require().NoError(s.store.SaveRule(ctx, rule))

	enabled := false
	priority := 3
	updated, err := s.store.UpdateRule(ctx, "g1", rule.ID, rules.RuleUpdate{
		Enabled:  &enabled,
		Priority: &priority,
	})
	s.Require().NoError(err)
	s.False(updated.Enabled)
	s.Equal(3, updated.Priority)
	s.Equal("block ads", updated.Name)

	fetched, err := s.store.GetRule(ctx, "g1", rule.ID)
	s.Require().NoError(err)
	s.False(fetched.Enabled)
}

func (s *PostgresStoreSuite) TestDeleteAndNotFound() {
	ctx := context.Background()

	rule := keywordRule("g1", "block ads", 10)
	s.Require().NoError(s.store.SaveRule(ctx, rule))
	s.Require().NoError(s.store.DeleteRule(ctx, "g1", rule.ID))

	_, err := s.store.GetRule(ctx, "g1", rule.ID)
	s.True(pkgerrors.IsNotFound(err))

	err = s.store.DeleteRule(ctx, "g1", rule.ID)
	s.True(pkgerrors.IsNotFound(err))

	_, err = s.store.UpdateRule(ctx, "g1", rule.ID, rules.RuleUpdate{})
	s.True(pkgerrors.IsNotFound(err))
}
