// Package config loads server settings from the environment.
//
// Values come from real environment variables; a .env file in the working
// directory is loaded first when it exists, so local development needs no
// exported variables. Variables already set in the environment win over
// the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // DAY_TIMEZONE must resolve in minimal containers

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server.
type Config struct {
	Port   int    `env:"PORT"    envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/gacha.db"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DayTimezone    string   `env:"DAY_TIMEZONE"     envDefault:"Asia/Seoul"`
	DailyDrawLimit int      `env:"DAILY_DRAW_LIMIT" envDefault:"1"`
	VillageCSVPath string   `env:"VILLAGE_CSV_PATH"`
	SeedUsers      []string `env:"SEED_USERS" envSeparator:","`

	CORSAllowedOrigin  string        `env:"CORS_ALLOWED_ORIGIN"   envDefault:"*"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST"      envDefault:"60"`
	SimulatedLatency   time.Duration `env:"SIMULATED_LATENCY"     envDefault:"0s"`

	ImageStore    string   `env:"IMAGE_STORE"     envDefault:"local"`
	UploadDir     string   `env:"UPLOAD_DIR"      envDefault:"data/uploads"`
	UploadBaseURL string   `env:"UPLOAD_BASE_URL" envDefault:"/uploads"`
	S3            S3Config `envPrefix:"S3_"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
}

// S3Config configures the S3-compatible image store (AWS, MinIO, R2...).
type S3Config struct {
	Bucket        string `env:"BUCKET"`
	Region        string `env:"REGION" envDefault:"ap-northeast-2"`
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	UsePathStyle  bool   `env:"USE_PATH_STYLE"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// SeedUser is one roster entry from SEED_USERS ("username:password:email").
type SeedUser struct {
	Username string
	Password string
	Email    string
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config: loading .env: %w", err)
		}
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.DailyDrawLimit < 1 {
		errs = append(errs, errors.New("DAILY_DRAW_LIMIT must be at least 1"))
	}
	if _, err := time.LoadLocation(c.DayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DAY_TIMEZONE: %w", err))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	switch c.ImageStore {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when IMAGE_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_STORE must be local or s3, got %q", c.ImageStore))
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit settings must not be negative"))
	}
	if _, err := c.Seeds(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the time zone that defines a gacha "day".
// Validate has already checked the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Seeds parses SEED_USERS. Passwords may not contain ':'.
func (c *Config) Seeds() ([]SeedUser, error) {
	seeds := make([]SeedUser, 0, len(c.SeedUsers))
	for _, raw := range c.SeedUsers {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("SEED_USERS entry %q must be username:password:email", raw)
		}
		seeds = append(seeds, SeedUser{Username: parts[0], Password: parts[1], Email: parts[2]})
	}
	return seeds, nil
}
