package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"002_more.sql":     {Data: []byte("SELECT 1")},
		"001_messages.sql": {Data: []byte("SELECT 1")},
		"README.md":        {Data: []byte("docs")},
		"old/003.sql":      {Data: []byte("SELECT 1")},
	}
	names, err := migrationNames(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_messages.sql", "002_more.sql"}, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	require.NoError(t, err)
	names, err := migrationNames(sub)
	require.NoError(t, err)
	require.NotEmpty(t, names)

	sql, err := fs.ReadFile(sub, names[0])
	require.NoError(t, err)
	assert.Contains(t, string(sql), "one_to_one_messages")

	require.Contains(t, names, "002_push_subscriptions.sql")
	sql, err = fs.ReadFile(sub, "002_push_subscriptions.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "push_subscriptions")
}

func TestNewPostgresPoolRejectsBadDSN(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), "postgres://%zz", nil)
	assert.ErrorContains(t, err, "parse pgx config")
}
