package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"threadline/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	cfg := &config.Config{Env: "test", StoreDriver: config.DriverSQLite, SQLitePath: ":memory:"}

	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)

	for _, table := range []string{"users", "comments", "comment_reactions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), &config.Config{StoreDriver: "cassandra"})
	assert.Error(t, err)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		driver, env   string
		runSQL, auto  bool
		expectFailure bool
	}{
		{config.DriverPostgres, "development", true, true, false},
		{config.DriverPostgres, "production", true, false, false},
		{config.DriverPostgres, "stage", true, false, false},
		{config.DriverSQLite, "production", false, true, false},
		{config.DriverMongo, "development", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.env, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&config.Config{StoreDriver: tt.driver, Env: tt.env})
			if tt.expectFailure {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.auto, runAuto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "000001_create_comments", migrations[0].String())
	assert.Contains(t, migrations[0].UpScript, "comment_reactions")
	assert.Contains(t, migrations[0].DownScript, "DROP TABLE IF EXISTS comments")
}

func TestRunMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("CREATE TABLE second (id INTEGER PRIMARY KEY);")},
		"m/000002_second.down.sql": {Data: []byte("DROP TABLE second;")},
		"m/000001_first.up.sql":    {Data: []byte("CREATE TABLE first (id INTEGER PRIMARY KEY);")},
		"m/000001_first.down.sql":  {Data: []byte("DROP TABLE first;")},
		"m/README.md":              {Data: []byte("ignored")},
		"m/bad.up.sql":             {Data: []byte("ignored")},
	}
	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "first", migrations[0].Name)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db, migrations))
	require.NoError(t, RunMigrations(ctx, db, migrations))

	applied, err := appliedVersions(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("second"))

	err = RunMigrations(ctx, db, migrations[:1])
	assert.ErrorContains(t, err, "000002")
}

func TestPendingAndRollback(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000001_first.up.sql":    {Data: []byte("CREATE TABLE first (id INTEGER PRIMARY KEY);")},
		"m/000001_first.down.sql":  {Data: []byte("DROP TABLE first;")},
		"m/000002_second.up.sql":   {Data: []byte("CREATE TABLE second (id INTEGER PRIMARY KEY);")},
		"m/000002_second.down.sql": {Data: []byte("DROP TABLE second;")},
	}
	migrations, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	ctx := context.Background()

	pending, err := PendingMigrations(ctx, db, migrations)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, RunMigrations(ctx, db, migrations))
	pending, err = PendingMigrations(ctx, db, migrations)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, RollbackMigration(ctx, db, migrations, 2))
	assert.False(t, db.Migrator().HasTable("second"))
	pending, err = PendingMigrations(ctx, db, migrations)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.ErrorContains(t, RollbackMigration(ctx, db, migrations, 2), "not applied")
	assert.ErrorContains(t, RollbackMigration(ctx, db, migrations, 9), "not registered")
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), "test", 3, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = WithRetry(context.Background(), "test", 0, func() error {
		attempts++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
