package duckdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_BootsSchema(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "duckdb-test-*")
	require.NoError(t, err)

	defer func() {
		err := os.RemoveAll(tmpDir)
		if err != nil {
			t.Errorf("failed to cleanup test directory: %v", err)
		}
	}()

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Settings{
		DbPath: dbPath,
	})
	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		err := db.Close()
		if err != nil {
			t.Errorf("failed to close database connection: %v", err)
		}
	}()

	_, err = db.Exec(
		`INSERT INTO clients (id, company_id, name, status) VALUES ($1, $2, $3, $4)`,
		1, 7, "Acme", "active",
	)
	require.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM clients WHERE company_id = $1", 7).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var id int64
	err = db.QueryRow(`
		INSERT INTO report_schedules (company_id, name, report_type, frequency, format, next_run_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP) RETURNING id`,
		7, "weekly", "tickets", "weekly", "pdf",
	).Scan(&id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDB(Settings{DbPath: dbPath})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, company_id, name, email) VALUES (1, 1, 'Ann', 'ann@example.com')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(Settings{DbPath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}
