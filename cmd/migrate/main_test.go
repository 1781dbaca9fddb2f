package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLSkipsCommentsAndSplitsStatements(t *testing.T) {
	statements := splitSQL(`
-- leading comment
CREATE TABLE a (id int);
CREATE TABLE b (
    id int,
    note text DEFAULT 'x;y'
);
`)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE a")
	assert.Contains(t, statements[1], "note text")
}

func TestReadSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001_test.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- +migrate Up\nCREATE TABLE a (id int);\n-- +migrate Down\nDROP TABLE a;\n"), 0o600))
	up, down, err := readSections(path)
	require.NoError(t, err)
	assert.Contains(t, up, "CREATE TABLE a")
	assert.NotContains(t, up, "DROP TABLE")
	assert.Contains(t, down, "DROP TABLE a")
}

func TestInitMigrationHasBothSections(t *testing.T) {
	up, down, err := readSections(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	assert.Contains(t, up, "card_submissions_payment_request_id_key")
	assert.Contains(t, up, "users_email_key")
	assert.Contains(t, down, "DROP TABLE IF EXISTS users")
}
