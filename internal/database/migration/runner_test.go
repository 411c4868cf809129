package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"feedsync/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"V2__second.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"V1__first.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"README.md":      {Data: []byte("ignored")},
		"V3__notes.txt":  {Data: []byte("ignored")},
	}

	migs, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, int64(1), migs[0].Version)
	assert.Equal(t, "first", migs[0].Name)
	assert.Equal(t, int64(2), migs[1].Version)
	assert.NotEmpty(t, migs[0].Checksum)
}

func TestLoadMigrations_RejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{
		"V1__a.sql":  {Data: []byte("SELECT 1;")},
		"V01__b.sql": {Data: []byte("SELECT 2;")},
	})
	require.ErrorContains(t, err, "duplicate migration version")

	_, err = loadMigrations(fstest.MapFS{"V1__empty.sql": {Data: []byte("   ")}})
	require.ErrorContains(t, err, "empty migration file")
}

func TestPendingMigrations(t *testing.T) {
	migs := []Migration{
		{Version: 1, Name: "a", Checksum: "aaa"},
		{Version: 2, Name: "b", Checksum: "bbb"},
	}

	pending, err := pendingMigrations(migs, map[int64]appliedMigration{1: {Version: 1, Checksum: "aaa"}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].Version)

	_, err = pendingMigrations(migs, map[int64]appliedMigration{1: {Version: 1, Checksum: "changed"}})
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := loadMigrations(migrations.FS)
	require.NoError(t, err)
	require.Len(t, migs, 3)
	assert.Equal(t, "create_job_listings", migs[0].Name)
	assert.Equal(t, "create_scraper_runs", migs[2].Name)
}

func TestRunner_Source(t *testing.T) {
	embedded := fstest.MapFS{"V1__a.sql": {Data: []byte("SELECT 1;")}}

	got, err := Runner{FS: embedded}.source()
	require.NoError(t, err)
	assert.Equal(t, embedded, got)

	dir := t.TempDir()
	got, err = Runner{Dir: dir, FS: embedded}.source()
	require.NoError(t, err)
	assert.NotEqual(t, embedded, got, "dir overrides the embedded files")

	_, err = Runner{}.source()
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestRunner_NothingToApply(t *testing.T) {
	var db *sql.DB
	require.Error(t, Runner{FS: fstest.MapFS{}}.Run(context.Background(), db))

	// An empty source returns before touching the database.
	require.NoError(t, Runner{Dir: t.TempDir()}.Run(context.Background(), &sql.DB{}))
}
