package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/server/config"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseDriver = "sqlite3"
	c.DatabaseDSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	return c
}

func TestNewApp_SQLite(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	var n int
	require.NoError(t, app.db.QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&n))
	assert.Zero(t, n)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	app.Run(ctx)

	assert.Error(t, app.db.Ping(), "Run closes the database")
}

func TestNewApp_Errors(t *testing.T) {
	c := testConfig()
	c.DatabaseDriver = "mysql"
	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)

	c = testConfig()
	c.LogBackend = "syslog"
	_, err = NewApp(context.Background(), c)
	assert.Error(t, err)
}
