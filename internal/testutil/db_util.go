package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DBIntegrationSuite is a testify suite backed by a throwaway PostgreSQL
// container. Tables are left to the suite that embeds it.
type DBIntegrationSuite struct {
	suite.Suite
	Pool             *pgxpool.Pool
	ConnectionString string
	pgContainer      *postgres.PostgresContainer
}

// SetupSuite starts the container. The suite is skipped under -short.
func (s *DBIntegrationSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping PostgreSQL integration tests in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vending"),
		postgres.WithUsername("vending"),
		postgres.WithPassword("vending"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err, "could not start postgres container")
	s.pgContainer = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err, "could not get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	s.Require().NoError(err, "could not connect to test database")

	s.Pool = pool
	s.ConnectionString = connStr
}

// TearDownSuite closes the pool and removes the container.
func (s *DBIntegrationSuite) TearDownSuite() {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.pgContainer != nil {
		s.Require().NoError(s.pgContainer.Terminate(context.Background()), "failed to terminate postgres container")
	}
}

// TruncateTables cleans the database state between tests.
func (s *DBIntegrationSuite) TruncateTables(tables ...string) {
	for _, table := range tables {
		_, err := s.Pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		s.Require().NoError(err, "failed to truncate table %s", table)
	}
}
