// Package database provides a per-test database.Client backed by a fresh
// schema, for tests that don't need to share a schema across replicas.
package database

import (
	"context"
	"testing"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/resumeforge/pipeline/pkg/database"
	"github.com/resumeforge/pipeline/test/util"
	"github.com/stretchr/testify/require"
)

// NewTestClient creates a test database client against a freshly migrated,
// uniquely named schema. The schema and connection pool are torn down via
// t.Cleanup when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()

	entClient, db := util.SetupTestDatabase(t)

	drv := entsql.OpenDB(dialect.Postgres, db)
	require.NoError(t, database.CreateGINIndexes(context.Background(), drv))

	return database.NewClientFromEnt(entClient, db)
}
