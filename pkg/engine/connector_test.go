package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 5432, config.Port)
	assert.Equal(t, int32(10), config.MaxConns)
}

func TestConnectionString(t *testing.T) {
	config := ConnectorConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "chameleon",
		User:     "postgres",
		Password: "secret",
	}

	connStr := config.ConnectionString()

	assert.Contains(t, connStr, "host=localhost")
	assert.Contains(t, connStr, "port=5432")
	assert.Contains(t, connStr, "dbname=chameleon")
	assert.Contains(t, connStr, "user=postgres")
	assert.Contains(t, connStr, "password=secret")
	assert.Contains(t, connStr, "sslmode=disable")
}

func TestNewConnectorNotConnected(t *testing.T) {
	connector := NewConnector(DefaultConfig())

	assert.False(t, connector.IsConnected())
	assert.Nil(t, connector.Pool())
}

func TestConnectorQuote(t *testing.T) {
	connector := NewConnector(DefaultConfig())
	assert.Equal(t, `"users"`, connector.Quote("users"))
}

func TestConnectorNotConnectedErrors(t *testing.T) {
	connector := NewConnector(DefaultConfig())
	ctx := context.Background()

	_, err := connector.Exec(ctx, "SELECT 1")
	assert.Error(t, err)

	_, err = connector.Query(ctx, "SELECT 1")
	assert.Error(t, err)

	_, err = connector.Prepare(ctx, "SELECT 1")
	assert.Error(t, err)

	assert.Error(t, connector.Ping(ctx))
}

func TestConnectorTransactionStateWithoutConnection(t *testing.T) {
	connector := NewConnector(DefaultConfig())

	assert.False(t, connector.InTransaction())

	// Commit with no open transaction is an error; Rollback is a no-op --
	// neither should panic on a nil tx.
	assert.Error(t, connector.Commit(context.Background()))
	assert.NoError(t, connector.Rollback(context.Background()))
}

func TestConnectorLastInsertID(t *testing.T) {
	connector := NewConnector(DefaultConfig())
	assert.Empty(t, connector.LastInsertID())

	connector.setLastInsertID("abc-123")
	assert.Equal(t, "abc-123", connector.LastInsertID())
}
