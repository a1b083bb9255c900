package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsIdempotentUsersTable(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	b, err := fs.ReadFile(FS, "00001_create_users.sql")
	require.NoError(t, err)

	sql := string(b)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, sql, "UNIQUE (email)")
	assert.NotContains(t, strings.ToUpper(sql), "DROP TABLE")
}
