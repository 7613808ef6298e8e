package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setAuthEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, AvatarBackendMinIO, cfg.Avatar.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 240*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.False(t, cfg.Auth.RevokeSessionsOnPasswordChange)
	assert.Equal(t, "/metrics", cfg.Metrics.PrometheusPath)
	assert.Equal(t, "avatars", cfg.MinIO.Bucket)
	assert.True(t, cfg.MinIO.PublicRead)
}

func TestLoadOverrides(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "1m")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "2h")
	t.Setenv("AUTH_REVOKE_ON_PASSWORD_CHANGE", "yes")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("AVATAR_BACKEND", "s3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.True(t, cfg.Auth.RevokeSessionsOnPasswordChange)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, AvatarBackendS3, cfg.Avatar.Backend)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_SECRET")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET")
}

func TestAuthConfigValidate(t *testing.T) {
	valid := AuthConfig{
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "b",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         10,
	}
	require.NoError(t, valid.Validate())

	same := valid
	same.RefreshTokenSecret = "a"
	assert.Error(t, same.Validate())

	noTTL := valid
	noTTL.AccessTokenTTL = 0
	assert.Error(t, noTTL.Validate())

	badCost := valid
	badCost.BcryptCost = 40
	assert.Error(t, badCost.Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "accounts", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/accounts?sslmode=disable", p.DSN())
}

func TestLoadAcceptsDaySuffixedTTL(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("ACCESS_TOKEN_EXPIRY", "1d")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "10d")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 240*time.Hour, cfg.Auth.RefreshTokenTTL)
}

func TestLoadRejectsUnparsableAuthSettings(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("ACCESS_TOKEN_EXPIRY", "garbage")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "-2d")
	t.Setenv("AUTH_BCRYPT_COST", "ten")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_EXPIRY")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_EXPIRY")
	assert.Contains(t, err.Error(), "AUTH_BCRYPT_COST")
}

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"15m":   15 * time.Minute,
		"1h30m": 90 * time.Minute,
		"1d":    24 * time.Hour,
		" 10d ": 240 * time.Hour,
		"1.5d":  36 * time.Hour,
	}
	for raw, want := range cases {
		got, err := ParseTTL(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "d", "xd", "0d", "1w", "garbage"} {
		_, err := ParseTTL(raw)
		assert.Error(t, err, raw)
	}
}
