package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const minSecretLength = 32

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout         time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"5s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	// empty allows every origin
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

type DBConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

type AuthConfig struct {
	Enabled       bool          `yaml:"enabled" env:"AUTH_ENABLED" env-default:"false"`
	DefaultUserID string        `yaml:"default_user_id" env:"AUTH_DEFAULT_USER_ID" env-default:"default-user"`
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer     string        `yaml:"jwt_issuer" env:"JWT_ISSUER" env-default:"calendar-planner"`
	JWTAudience   string        `yaml:"jwt_audience" env:"JWT_AUDIENCE" env-default:"calendar-planner-web"`
	JWTTTL        time.Duration `yaml:"jwt_ttl" env:"JWT_TTL" env-default:"168h"`
	RateLimit     int           `yaml:"rate_limit" env:"AUTH_RATE_LIMIT" env-default:"5"`
	RateWindow    time.Duration `yaml:"rate_window" env:"AUTH_RATE_WINDOW" env-default:"15m"`
}

type Config struct {
	LogLevel string     `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	Timezone string     `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`
	HTTP     HTTPConfig `yaml:"http"`
	DB       DBConfig   `yaml:"db"`
	Auth     AuthConfig `yaml:"auth"`
}

// Load reads configPath when it exists and environment variables otherwise,
// then validates the result.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("cannot read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("cannot read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("cannot read env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func MustLoad(configPath string) Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}
	return cfg
}

// Location is the zone day and month windows are computed in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}

	switch c.DB.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite3, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("DB_DSN must be set")
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %s", c.HTTP.ShutdownTimeout)
	}
	origins := c.HTTP.AllowedOrigins[:0]
	for _, o := range c.HTTP.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.AllowedOrigins = origins

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", c.LogLevel)
	}

	if c.Auth.DefaultUserID == "" {
		return errors.New("AUTH_DEFAULT_USER_ID must not be empty")
	}
	if !c.Auth.Enabled {
		return nil
	}
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Auth.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.Auth.JWTTTL)
	}
	if c.Auth.RateLimit <= 0 || c.Auth.RateWindow <= 0 {
		return errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive")
	}
	return nil
}
