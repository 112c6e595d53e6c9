package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keyauth/internal/dbx"
	"github.com/dmitrijs2005/keyauth/internal/server/config"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/licenses"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	migrateErr error
	migrated   bool
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated = true
	return m.migrateErr
}
func (m *fakeManager) Users(dbx.DBTX) users.Repository       { return nil }
func (m *fakeManager) Licenses(dbx.DBTX) licenses.Repository { return nil }

func stubSeams(t *testing.T, db *sql.DB, openErr error, rm repomanager.RepositoryManager) {
	t.Helper()
	origOpen, origRM := openDB, newRepositoryManager
	t.Cleanup(func() { openDB, newRepositoryManager = origOpen, origRM })

	openDB = func(string) (*sql.DB, error) { return db, openErr }
	newRepositoryManager = func() repomanager.RepositoryManager { return rm }
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.LogLevel = "error"
	return c
}

func TestNewApp_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	rm := &fakeManager{}
	stubSeams(t, db, nil, rm)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, rm.migrated)
	assert.NotNil(t, app.userService)
	assert.NotNil(t, app.licenseService)
	assert.NotNil(t, app.exportService)
	assert.NotNil(t, app.grpcServer)
	assert.NotNil(t, app.httpHandler())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		c := testConfig()
		c.LogLevel = "loud"
		_, err := NewApp(context.Background(), c)
		assert.ErrorContains(t, err, "logger init error")
	})

	t.Run("open fails", func(t *testing.T) {
		stubSeams(t, nil, errors.New("bad dsn"), &fakeManager{})
		_, err := NewApp(context.Background(), testConfig())
		assert.ErrorContains(t, err, "db init error")
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("refused"))
		mock.ExpectClose()

		stubSeams(t, db, nil, &fakeManager{})
		_, err = NewApp(context.Background(), testConfig())
		assert.ErrorContains(t, err, "refused")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("migrations fail", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing()
		mock.ExpectClose()

		stubSeams(t, db, nil, &fakeManager{migrateErr: errors.New("dirty")})
		_, err = NewApp(context.Background(), testConfig())
		assert.ErrorContains(t, err, "migration error")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()
	stubSeams(t, db, nil, &fakeManager{})

	c := testConfig()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app.Run(ctx)

	require.NoError(t, mock.ExpectationsWereMet())
}
