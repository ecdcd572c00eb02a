package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/technosupport/control-center/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/default.yaml"

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Ingest    IngestConfig     `yaml:"ingest"`
	Auth      AuthConfig       `yaml:"auth"`
	Stream    StreamConfig     `yaml:"stream"`
	Cameras   CamerasConfig    `yaml:"cameras"`
	Log       LogConfig        `yaml:"log"`
	TimeZone  string           `yaml:"time_zone"`
	RateLimit ratelimit.Policy `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	SSLMode        string `yaml:"sslmode"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the golang-migrate postgres URL.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	IPSalt   string `yaml:"ip_salt"`
}

type IngestConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	QueueGroup    string        `yaml:"queue_group"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
	DedupMaxKeys  int           `yaml:"dedup_max_keys"`
}

type AuthConfig struct {
	SigningKey    string        `yaml:"signing_key"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	DefaultUserID string        `yaml:"default_user_id"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	BufferSize        int           `yaml:"buffer_size"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type CamerasConfig struct {
	StreamURLTemplate string   `yaml:"stream_url_template"`
	ProtectedIDs      []string `yaml:"protected_ids"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "cctv",
			Name:           "control_center",
			SSLMode:        "disable",
			MaxOpenConns:   20,
			MigrationsPath: "db/migrations",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Ingest: IngestConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "detections",
			QueueGroup:    "control-center",
			DedupTTL:      5 * time.Minute,
			DedupMaxKeys:  10000,
		},
		Auth: AuthConfig{TokenTTL: 12 * time.Hour},
		Stream: StreamConfig{
			HeartbeatInterval: 10 * time.Second,
			BufferSize:        64,
			WriteTimeout:      10 * time.Second,
		},
		Cameras: CamerasConfig{
			StreamURLTemplate: "http://detector:5001/stream/{id}",
			ProtectedIDs:      []string{"cam-001", "cam-002"},
		},
		Log:      LogConfig{Level: "info"},
		TimeZone: "Asia/Seoul",
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("DB_HOST", &cfg.Database.Host)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("NATS_URL", &cfg.Ingest.URL)
	setString("JWT_SIGNING_KEY", &cfg.Auth.SigningKey)
	setString("PORT", &cfg.Server.Port)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("TZ_NAME", &cfg.TimeZone)

	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
}

// Location resolves TimeZone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
