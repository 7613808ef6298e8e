package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers understood by the API.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Avatar backends understood by the API.
const (
	AvatarBackendMinIO = "minio"
	AvatarBackendS3    = "s3"
)

// Config aggregates runtime configuration for the accounts API.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Avatar   AvatarConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	SecureCookies bool
	UploadDir     string
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the user store implementation.
type StorageConfig struct {
	Driver        string
	RunMigrations bool
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// MaxConns caps the pool size; zero keeps the pgxpool default.
	MaxConns        int32
	MaxConnIdleTime time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries object store connection and bucket information.
// It is shared by the MinIO and S3 avatar backends.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	PublicBaseURL   string

	// PublicRead installs an anonymous read policy on the bucket at startup.
	PublicRead bool
}

// AvatarConfig controls where avatar images are uploaded.
type AvatarConfig struct {
	Backend   string
	KeyPrefix string
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret              string
	RefreshTokenSecret             string
	AccessTokenTTL                 time.Duration
	RefreshTokenTTL                time.Duration
	BcryptCost                     int
	RevokeSessionsOnPasswordChange bool
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:          getString("API_HOST", "0.0.0.0"),
			Port:          getInt("API_PORT", 8000),
			ReadTimeout:   getDuration("API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:  getDuration("API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:   getDuration("API_IDLE_TIMEOUT", 60*time.Second),
			SecureCookies: getBool("API_SECURE_COOKIES", true),
			UploadDir:     getString("API_UPLOAD_DIR", os.TempDir()),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getString("STORAGE_DRIVER", StorageDriverPostgres)),
			RunMigrations: getBool("STORAGE_RUN_MIGRATIONS", true),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "accounts_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "accounts"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),

			MaxConns:        int32(getInt("POSTGRES_MAX_CONNS", 10)),
			MaxConnIdleTime: getDuration("POSTGRES_MAX_CONN_IDLE", 5*time.Minute),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "accounts"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "avatars"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", "us-east-1"),
			PublicBaseURL:   getString("MINIO_PUBLIC_URL", ""),
			PublicRead:      getBool("MINIO_PUBLIC_READ", true),
		},
		Avatar: AvatarConfig{
			Backend:   strings.ToLower(getString("AVATAR_BACKEND", AvatarBackendMinIO)),
			KeyPrefix: getString("AVATAR_KEY_PREFIX", "avatars"),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("METRICS_PATH", "/metrics"),
		},
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = auth

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports configuration that would leave the service unable to sign
// tokens or reach its dependencies.
func (c Config) Validate() error {
	var errs []error

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Avatar.Backend {
	case AvatarBackendMinIO, AvatarBackendS3:
	default:
		errs = append(errs, fmt.Errorf("unknown avatar backend %q", c.Avatar.Backend))
	}

	if strings.TrimSpace(c.MinIO.Bucket) == "" {
		errs = append(errs, errors.New("object store bucket is required"))
	}

	return errors.Join(errs...)
}

// Validate checks the token secrets, lifetimes and hashing cost.
func (a AuthConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(a.AccessTokenSecret) == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if strings.TrimSpace(a.RefreshTokenSecret) == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if a.AccessTokenSecret != "" && a.AccessTokenSecret == a.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if a.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access token ttl must be positive"))
	}
	if a.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("refresh token ttl must be positive"))
	}
	if a.BcryptCost < 4 || a.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range [4,31]", a.BcryptCost))
	}

	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// loadAuthConfig reads the token settings strictly: a value that is set but
// unparsable fails startup instead of falling back to the default.
func loadAuthConfig() (AuthConfig, error) {
	accessTTL, accessErr := lookupTTL("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
	refreshTTL, refreshErr := lookupTTL("REFRESH_TOKEN_EXPIRY", 240*time.Hour)
	cost, costErr := lookupInt("AUTH_BCRYPT_COST", 10)
	if err := errors.Join(accessErr, refreshErr, costErr); err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		AccessTokenSecret:              getString("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret:             getString("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:                 accessTTL,
		RefreshTokenTTL:                refreshTTL,
		BcryptCost:                     cost,
		RevokeSessionsOnPasswordChange: getBool("AUTH_REVOKE_ON_PASSWORD_CHANGE", false),
	}, nil
}

func lookupTTL(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback, nil
	}
	ttl, err := ParseTTL(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return ttl, nil
}

func lookupInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return parsed, nil
}

// ParseTTL parses a token lifetime. It accepts Go durations ("15m", "1h30m")
// and whole or fractional days ("1d", "10d", "1.5d").
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return ttl, nil
}
