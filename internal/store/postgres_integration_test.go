//go:build integration

package store

import (
	"context"
	"testing"

	"citizen-engagement/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PostgresRepoSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	dsn       string
}

func TestPostgresRepoSuite(t *testing.T) {
	suite.Run(t, new(PostgresRepoSuite))
}

func (s *PostgresRepoSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("citizen"),
		tcpostgres.WithUsername("citizen"),
		tcpostgres.WithPassword("citizen"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	s.dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
}

func (s *PostgresRepoSuite) TearDownSuite() {
	_ = testcontainers.TerminateContainer(s.container)
}

// newRepo gives each subtest an empty schema.
func (s *PostgresRepoSuite) newRepo(t *testing.T) *SQLRepo {
	ctx := context.Background()
	db, err := utils.OpenDB(ctx, "pgx", s.dsn, utils.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"issue_actions", "issue_comments", "issues", "issue_types", "users"} {
		_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
		require.NoError(t, err)
	}
	require.NoError(t, Migrate(ctx, db))
	return NewSQLRepo(db, DialectPostgres)
}

func (s *PostgresRepoSuite) TestContract() {
	runRepoContract(s.T(), func(t *testing.T) (repo, seeder) {
		r := s.newRepo(t)
		return r, sqlSeeder(t, r)
	})
}
