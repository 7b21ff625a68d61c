package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	Schema          string        `yaml:"schema"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type MaintenanceConfig struct {
	BatchSize      int    `yaml:"batch_size"`
	HistoryComment string `yaml:"history_comment"`
}

type Config struct {
	App         AppConfig         `yaml:"app"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Env:      "development",
			LogLevel: "info",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			SSLMode:         "disable",
			Schema:          "order_service",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Maintenance: MaintenanceConfig{
			BatchSize:      100,
			HistoryComment: "Status history backfilled by maintenance",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment, in that order of
// precedence (environment wins).
func Load(envPath, yamlPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := defaults()

	if yamlPath != "" {
		file, err := os.Open(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Postgres.Schema, "DB_SCHEMA")
	setString(&cfg.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")
	setString(&cfg.Maintenance.HistoryComment, "HISTORY_COMMENT")

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("DB_MAX_CONNS must be an integer: %w", err)
		}
		cfg.Postgres.MaxConns = int32(n)
	}
	if v := os.Getenv("DB_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("DB_MIN_CONNS must be an integer: %w", err)
		}
		cfg.Postgres.MinConns = int32(n)
	}
	if v := os.Getenv("DB_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DB_MAX_CONN_LIFETIME must be a duration: %w", err)
		}
		cfg.Postgres.MaxConnLifetime = d
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_SIZE must be an integer: %w", err)
		}
		cfg.Maintenance.BatchSize = n
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Postgres.Host == "" {
		problems = append(problems, "DB_HOST is required")
	}
	if port, err := strconv.Atoi(c.Postgres.Port); err != nil || port <= 0 || port > 65535 {
		problems = append(problems, "DB_PORT must be in 1..65535")
	}
	if c.Postgres.User == "" {
		problems = append(problems, "DB_USER is required")
	}
	if c.Postgres.DBName == "" {
		problems = append(problems, "DB_NAME is required")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		problems = append(problems, "DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.Maintenance.BatchSize <= 0 {
		problems = append(problems, "BATCH_SIZE must be > 0")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns a key/value connection string for lib/pq and pgx.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.DBName, p.SSLMode)
	if p.Password != "" {
		dsn += " password='" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.Password) + "'"
	}
	if p.Schema != "" {
		dsn += " search_path=" + p.Schema
	}
	return dsn
}
