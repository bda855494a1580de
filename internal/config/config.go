// Package config loads the server configuration from defaults, an optional
// TOML or YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string     `toml:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	Server     Server     `toml:"server" yaml:"server"`
	Database   Database   `toml:"database" yaml:"database"`
	Auth       Auth       `toml:"auth" yaml:"auth"`
	Moderation Moderation `toml:"moderation" yaml:"moderation"`
	Tracing    Tracing    `toml:"tracing" yaml:"tracing"`
}

type Server struct {
	Addr         string        `toml:"addr" yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `toml:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `toml:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
	CORSOrigins  []string      `toml:"cors_origins" yaml:"cors_origins" validate:"min=1,dive,required"`
}

type Database struct {
	URL             string        `toml:"url" yaml:"url"`
	Host            string        `toml:"host" yaml:"host" validate:"required_without=URL"`
	Port            int           `toml:"port" yaml:"port" validate:"min=0,max=65535"`
	User            string        `toml:"user" yaml:"user" validate:"required_without=URL"`
	Password        string        `toml:"password" yaml:"password"`
	Name            string        `toml:"name" yaml:"name" validate:"required_without=URL"`
	SSLMode         string        `toml:"sslmode" yaml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxIdleConns    int           `toml:"max_idle_conns" yaml:"max_idle_conns" validate:"min=0"`
	MaxOpenConns    int           `toml:"max_open_conns" yaml:"max_open_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	LogLevel        string        `toml:"log_level" yaml:"log_level" validate:"oneof=silent error warn info"`
}

// DSN returns URL when set and a key/value connection string otherwise.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type Auth struct {
	JWTSecret string        `toml:"jwt_secret" yaml:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration `toml:"token_ttl" yaml:"token_ttl" validate:"gt=0"`
}

type Moderation struct {
	// FlagThreshold flags content whose vote count falls below it.
	FlagThreshold int `toml:"flag_threshold" yaml:"flag_threshold" validate:"lte=0"`
}

type Tracing struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	ServiceName string `toml:"service_name" yaml:"service_name" validate:"required_if=Enabled true"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  time.Minute,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		Database: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Name:            "stackit",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		Auth: Auth{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Moderation: Moderation{
			FlagThreshold: -2,
		},
		Tracing: Tracing{
			ServiceName: "stackit",
		},
	}
}

// Load reads .env if present, then path (may be empty), then the process
// environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load without .env handling and with a custom environment.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Server.Addr = ":" + port
	}
	if origins, ok := lookup("CORS_ORIGINS"); ok && origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}
	str("LOG_LEVEL", &cfg.LogLevel)

	str("DATABASE_URL", &cfg.Database.URL)
	str("DB_HOST", &cfg.Database.Host)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_NAME", &cfg.Database.Name)
	str("DB_SSLMODE", &cfg.Database.SSLMode)
	if err := num("DB_PORT", &cfg.Database.Port); err != nil {
		return err
	}

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	if v, ok := lookup("JWT_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}

	if err := num("FLAG_THRESHOLD", &cfg.Moderation.FlagThreshold); err != nil {
		return err
	}
	if v, ok := lookup("TRACING_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACING_ENABLED: %w", err)
		}
		cfg.Tracing.Enabled = b
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
