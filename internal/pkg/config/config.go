package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port            string        `env:"PORT,             default=5000"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS,  default=http://localhost:3000"`

	Auth   AuthConfig
	Upload UploadConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	S3     S3Config
	SMTP   SMTPConfig
	Reaper ReaperConfig
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL,             default=12h"`
	CookieName    string        `env:"SESSION_COOKIE_NAME,   default=intake_session"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE, default=false"`
	MaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS,    default=5"`
	Lockout       time.Duration `env:"LOGIN_LOCKOUT,         default=15m"`
	RateLimit     float64       `env:"AUTH_RATE_LIMIT,       default=5"`
	AdminEmail    string        `env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string        `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

type UploadConfig struct {
	FileSizeLimit    int64    `env:"FILE_SIZE_LIMIT,     default=10485760"`
	MaxFiles         int      `env:"MAX_FILES_PER_BATCH, default=10"`
	Concurrency      int      `env:"UPLOAD_CONCURRENCY,  default=4"`
	AllowedMimeTypes []string `env:"ALLOWED_MIME_TYPES,  default=application/pdf,image/jpeg,image/png"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=intake"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type S3Config struct {
	Endpoint     string `env:"S3_ENDPOINT,      default=localhost:9000"`
	AccessKey    string `env:"S3_ACCESS_KEY"`
	SecretKey    string `env:"S3_SECRET_KEY"`
	Bucket       string `env:"S3_BUCKET,        default=intake-documents"`
	Region       string `env:"S3_REGION"`
	CreateBucket bool   `env:"S3_CREATE_BUCKET, default=true"`
}

type SMTPConfig struct {
	Host          string `env:"SMTP_HOST"`
	Port          int    `env:"SMTP_PORT,            default=587"`
	User          string `env:"SMTP_USER"`
	Pass          string `env:"SMTP_PASS"`
	From          string `env:"SMTP_FROM"`
	SkipTLSVerify bool   `env:"SMTP_SKIP_TLS_VERIFY, default=false"`
}

type ReaperConfig struct {
	Workers       int           `env:"REAPER_WORKERS,        default=4"`
	Grace         time.Duration `env:"ORPHAN_GRACE,          default=1h"`
	SweepInterval time.Duration `env:"ORPHAN_SWEEP_INTERVAL, default=30m"`
}

// Load reads configuration through lookuper, normalises list values and
// validates the result. A nil lookuper reads the process environment.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)
	cfg.Upload.AllowedMimeTypes = compact(cfg.Upload.AllowedMimeTypes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules that span more than one field.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL < time.Minute || c.Auth.TokenTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be between 1m and 24h, got %s", c.Auth.TokenTTL))
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if c.Upload.FileSizeLimit <= 0 {
		errs = append(errs, errors.New("FILE_SIZE_LIMIT must be positive"))
	}
	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, errors.New("MAX_FILES_PER_BATCH must be positive"))
	}
	if len(c.Upload.AllowedMimeTypes) == 0 {
		errs = append(errs, errors.New("ALLOWED_MIME_TYPES must not be empty"))
	}
	if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required"))
	}
	if c.Reaper.SweepInterval <= 0 {
		errs = append(errs, errors.New("ORPHAN_SWEEP_INTERVAL must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// MaxRequestBytes bounds a submission request body: every file at the size
// limit plus multipart overhead.
func (c *Config) MaxRequestBytes() int64 {
	return c.Upload.FileSizeLimit*int64(c.Upload.MaxFiles) + 1<<20
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
