package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string `yaml:"port"`
	Environment  string `yaml:"env"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	LogLevel     string `yaml:"log_level"`

	Map     MapConfig     `yaml:"map"`
	Auth    AuthConfig    `yaml:"auth"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// MapConfig описывает настройки сервиса карты.
type MapConfig struct {
	DBPath        string        `yaml:"db_path"`
	Migrations    string        `yaml:"migrations"`
	Image         string        `yaml:"image"`
	AssetsDir     string        `yaml:"assets_dir"`
	PublicBaseURL string        `yaml:"public_base_url"`
	AuthURL       string        `yaml:"auth_url"`
	EditorIdleTTL time.Duration `yaml:"editor_idle_ttl"`
}

type AuthConfig struct {
	DBPath     string `yaml:"db_path"`
	Migrations string `yaml:"migrations"`
}

type GatewayConfig struct {
	MapURL      string   `yaml:"map_url"`
	AuthURL     string   `yaml:"auth_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	DocsPath    string   `yaml:"docs_path"`
}

func defaults() *Config {
	return &Config{
		Port:         "3000",
		Environment:  "development",
		ReadTimeout:  10,
		WriteTimeout: 10,
		LogLevel:     "info",
		Map: MapConfig{
			DBPath:        "data/db/map.db",
			Migrations:    "migrations/002_init_map.sql",
			Image:         "assets/map.png",
			AssetsDir:     "data/assets",
			PublicBaseURL: "http://localhost:3000",
			AuthURL:       "http://localhost:3002",
			EditorIdleTTL: 30 * time.Minute,
		},
		Auth: AuthConfig{
			DBPath:     "data/db/auth.db",
			Migrations: "migrations/001_init_auth.sql",
		},
		Gateway: GatewayConfig{
			MapURL:      "http://localhost:3003",
			AuthURL:     "http://localhost:3002",
			CORSOrigins: []string{"*"},
			DocsPath:    "docs/openapi.yaml",
		},
	}
}

// Load загружает конфигурацию: значения по умолчанию, затем YAML-файл из
// CONFIG_FILE (если задан), затем переменные окружения.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment сообщает, что сервис запущен локально.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Environment, "ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if err := setInt(&cfg.ReadTimeout, "READ_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.WriteTimeout, "WRITE_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Map.DBPath, "MAP_DB_PATH")
	setString(&cfg.Map.Migrations, "MAP_MIGRATIONS")
	setString(&cfg.Map.Image, "MAP_IMAGE")
	setString(&cfg.Map.AssetsDir, "MAP_ASSETS_DIR")
	setString(&cfg.Map.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.Map.AuthURL, "AUTH_URL")
	if ttl := os.Getenv("EDITOR_IDLE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid EDITOR_IDLE_TTL %q: %w", ttl, err)
		}
		cfg.Map.EditorIdleTTL = d
	}

	setString(&cfg.Auth.DBPath, "AUTH_DB_PATH")
	setString(&cfg.Auth.Migrations, "AUTH_MIGRATIONS")

	setString(&cfg.Gateway.MapURL, "MAP_URL")
	setString(&cfg.Gateway.AuthURL, "AUTH_URL")
	setString(&cfg.Gateway.DocsPath, "DOCS_PATH")
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = intVal
	return nil
}
