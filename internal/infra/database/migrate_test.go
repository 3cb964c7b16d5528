package database

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrate struct {
	upErr      error
	downErr    error
	stepsErr   error
	steps      []int
	version    uint
	dirty      bool
	versionErr error
	closeSrc   error
	closeDB    error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSrc, f.closeDB }

func TestMigratorIgnoresNoChange(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}}

	assert.NoError(t, m.Up())
	assert.NoError(t, m.Down())
	assert.NoError(t, m.Steps(1))
}

func TestMigratorWrapsFailures(t *testing.T) {
	boom := errors.New("boom")
	m := &Migrator{m: &fakeMigrate{upErr: boom, downErr: boom, stepsErr: boom}}

	assert.ErrorIs(t, m.Up(), boom)
	assert.ErrorIs(t, m.Down(), boom)
	assert.ErrorIs(t, m.Steps(-1), boom)
}

func TestMigratorVersion(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrate{version: 1, dirty: true}}
	version, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.True(t, dirty)
}

func TestMigratorCloseJoinsErrors(t *testing.T) {
	src := errors.New("source")
	db := errors.New("database")
	m := &Migrator{m: &fakeMigrate{closeSrc: src, closeDB: db}}

	err := m.Close()
	assert.ErrorIs(t, err, src)
	assert.ErrorIs(t, err, db)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgresql://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("pgx5://u:p@h:5432/db"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
