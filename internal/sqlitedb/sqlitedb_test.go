package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := Open(context.Background(), path, `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES ('a', 'b')`)
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRow(`SELECT v FROM kv WHERE k = 'a'`).Scan(&v))
	assert.Equal(t, "b", v)
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(context.Background(), MemoryPath, `CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO t (x) VALUES (1)`)
	require.NoError(t, err)
}

func TestOpenBadSchema(t *testing.T) {
	_, err := Open(context.Background(), MemoryPath, `CREATE NONSENSE`)
	assert.Error(t, err)
}

func TestQuoteFTS(t *testing.T) {
	assert.Equal(t, `"which" OR "db"`, QuoteFTS(`which "db?"`))
	assert.Equal(t, `"tokens"`, QuoteFTS(`(tokens) -`))
	assert.Equal(t, "", QuoteFTS(`  "" `))
}
