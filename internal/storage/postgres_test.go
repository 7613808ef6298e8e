package storage

import (
	"testing"
	"time"

	"github.com/abduss/accounts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigAppliesLimits(t *testing.T) {
	cfg := config.PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "accounts", SSLMode: "disable",
		MaxConns:        7,
		MaxConnIdleTime: time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(7), poolCfg.MaxConns)
	assert.Equal(t, time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, "db", poolCfg.ConnConfig.Host)
	assert.Equal(t, "accounts", poolCfg.ConnConfig.Database)
	assert.Equal(t, defaultDBTimeout, poolCfg.ConnConfig.ConnectTimeout)
}

func TestPoolConfigKeepsDefaults(t *testing.T) {
	poolCfg, err := poolConfig(config.PostgresConfig{Host: "db", Port: 5432, User: "u", Database: "accounts", SSLMode: "disable"})
	require.NoError(t, err)
	assert.Positive(t, poolCfg.MaxConns)
}
