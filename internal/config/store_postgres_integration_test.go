//go:build integration

package config_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"gatekeeper/internal/config"
	"gatekeeper/pkg/testutil/containers"
)

type PostgresGroupStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *config.PostgresGroupStore
}

func TestPostgresGroupStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresGroupStoreSuite))
}

func (s *PostgresGroupStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../migrations/postgres")
	s.store = config.NewPostgresGroupStore(s.pg.DB)
}

func (s *PostgresGroupStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background(), "group_config"))
}

func (s *PostgresGroupStoreSuite) TestMissingGroupLoadsNil() {
	overrides, err := s.store.LoadGroupConfig(context.Background(), "g1")
	s.Require().NoError(err)
	s.Nil(overrides)
}

func (s *PostgresGroupStoreSuite) TestSaveAndLoadRoundTrip() {
	ctx := context.Background()

	saved := config.GroupOverrides{
		"autoProcess": json.RawMessage(`true`),
		"whitelist":   json.RawMessage(`["10001","10002"]`),
	}
	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", saved))

	loaded, err := s.store.LoadGroupConfig(ctx, "g1")
	s.Require().NoError(err)
	s.JSONEq(`true`, string(loaded["autoProcess"]))
	s.JSONEq(`["10001","10002"]`, string(loaded["whitelist"]))
}

func (s *PostgresGroupStoreSuite) TestPartialSaveKeepsOtherKeys() {
	ctx := context.Background()

	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", config.GroupOverrides{
		"autoProcess": json.RawMessage(`true`),
	}))
	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", config.GroupOverrides{
		"useKeywordFilter": json.RawMessage(`true`),
	}))

	loaded, err := s.store.LoadGroupConfig(ctx, "g1")
	s.Require().NoError(err)
	s.Len(loaded, 2)
	s.JSONEq(`true`, string(loaded["autoProcess"]))
}

func (s *PostgresGroupStoreSuite) TestUpsertReplacesValue() {
	ctx := context.Background()

	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", config.GroupOverrides{
		"welcomeDelaySeconds": json.RawMessage(`3`),
	}))
	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", config.GroupOverrides{
		"welcomeDelaySeconds": json.RawMessage(`10`),
	}))

	loaded, err := s.store.LoadGroupConfig(ctx, "g1")
	s.Require().NoError(err)
	s.JSONEq(`10`, string(loaded["welcomeDelaySeconds"]))

	effective, err := config.Overlay(config.DefaultModeration(), loaded)
	s.Require().NoError(err)
	s.Equal(10, effective.WelcomeDelaySeconds)
}

func (s *PostgresGroupStoreSuite) TestGroupsAreIsolated() {
	ctx := context.Background()

	s.Require().NoError(s.store.SaveGroupConfig(ctx, "g1", config.GroupOverrides{
		"autoProcess": json.RawMessage(`true`),
	}))

	loaded, err := s.store.LoadGroupConfig(ctx, "g2")
	s.Require().NoError(err)
	s.Nil(loaded)
}
