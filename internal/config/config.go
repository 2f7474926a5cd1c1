package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Clamd      ClamdConfig      `mapstructure:"clamd"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Team       TeamConfig       `mapstructure:"team"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Worker     WorkerConfig     `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins splits AllowedOrigins into a trimmed list.
func (a APIConfig) Origins() []string {
	return splitList(a.AllowedOrigins)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig contains connection options for PostgreSQL or a local SQLite file.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// RedisConfig contains redis connection settings shared by pub/sub and asynq.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
// An empty Endpoint disables attachment uploads.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// Enabled reports whether object storage is configured.
func (m MinIOConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
}

// ClamdConfig points at a clamd daemon; an empty address skips scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// SimulationConfig controls injected failures and latency on the request surface.
type SimulationConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	WriteFailureRate   float64       `mapstructure:"write_failure_rate"`
	ReorderFailureRate float64       `mapstructure:"reorder_failure_rate"`
	MinLatency         time.Duration `mapstructure:"min_latency"`
	MaxLatency         time.Duration `mapstructure:"max_latency"`
}

// SeedConfig controls demo data population.
type SeedConfig struct {
	OnStart     bool  `mapstructure:"on_start"`
	Jobs        int   `mapstructure:"jobs"`
	Candidates  int   `mapstructure:"candidates"`
	Assessments int   `mapstructure:"assessments"`
	RandomSeed  int64 `mapstructure:"random_seed"`
}

// PipelineConfig toggles stage transition enforcement.
type PipelineConfig struct {
	EnforceTransitions bool `mapstructure:"enforce_transitions"`
}

// TeamConfig lists the roster used to highlight @mentions in notes.
type TeamConfig struct {
	Members string `mapstructure:"members"`
}

// Roster splits Members into names.
func (t TeamConfig) Roster() []string {
	return splitList(t.Members)
}

// AuthConfig contains recruiter token settings. An empty secret disables tokens.
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	RequireForWrites bool          `mapstructure:"require_for_writes"`
}

// WorkerConfig contains asynq worker settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", "")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "talentflow")
	v.SetDefault("database.user", "talentflow")
	v.SetDefault("database.password", "talentflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "talentflow.db")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "talentflow")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("clamd.addr", "")
	v.SetDefault("simulation.enabled", true)
	v.SetDefault("simulation.write_failure_rate", 0.08)
	v.SetDefault("simulation.reorder_failure_rate", 0.25)
	v.SetDefault("simulation.min_latency", 200*time.Millisecond)
	v.SetDefault("simulation.max_latency", 1200*time.Millisecond)
	v.SetDefault("seed.on_start", true)
	v.SetDefault("seed.jobs", 25)
	v.SetDefault("seed.candidates", 1000)
	v.SetDefault("seed.assessments", 5)
	v.SetDefault("seed.random_seed", 0)
	v.SetDefault("pipeline.enforce_transitions", false)
	v.SetDefault("team.members", "John Doe,Jane Smith,Team Lead")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 720*time.Hour)
	v.SetDefault("auth.require_for_writes", false)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.metrics_port", 9091)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                        "API_PORT",
		"api.allowed_origins":             "API_ALLOWED_ORIGINS",
		"database.driver":                 "DATABASE_DRIVER",
		"database.host":                   "DATABASE_HOST",
		"database.port":                   "DATABASE_PORT",
		"database.name":                   "POSTGRES_DB",
		"database.user":                   "POSTGRES_USER",
		"database.password":               "POSTGRES_PASSWORD",
		"database.sslmode":                "DATABASE_SSLMODE",
		"database.path":                   "SQLITE_PATH",
		"redis.host":                      "REDIS_HOST",
		"redis.port":                      "REDIS_PORT",
		"minio.endpoint":                  "MINIO_ENDPOINT",
		"minio.public_endpoint":           "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":             "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":         "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                   "MINIO_USE_SSL",
		"minio.bucket":                    "MINIO_BUCKET",
		"minio.region":                    "MINIO_REGION",
		"minio.bucket_lookup":             "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":        "MINIO_AUTO_CREATE_BUCKET",
		"clamd.addr":                      "CLAMD_ADDR",
		"simulation.enabled":              "SIMULATION_ENABLED",
		"simulation.write_failure_rate":   "SIMULATION_WRITE_FAILURE_RATE",
		"simulation.reorder_failure_rate": "SIMULATION_REORDER_FAILURE_RATE",
		"simulation.min_latency":          "SIMULATION_MIN_LATENCY",
		"simulation.max_latency":          "SIMULATION_MAX_LATENCY",
		"seed.on_start":                   "SEED_ON_START",
		"seed.jobs":                       "SEED_JOBS",
		"seed.candidates":                 "SEED_CANDIDATES",
		"seed.assessments":                "SEED_ASSESSMENTS",
		"seed.random_seed":                "SEED_RANDOM_SEED",
		"pipeline.enforce_transitions":    "PIPELINE_ENFORCE_TRANSITIONS",
		"team.members":                    "TEAM_MEMBERS",
		"auth.jwt_secret":                 "AUTH_JWT_SECRET",
		"auth.token_ttl":                  "AUTH_TOKEN_TTL",
		"auth.require_for_writes":         "AUTH_REQUIRE_FOR_WRITES",
		"worker.concurrency":              "WORKER_CONCURRENCY",
		"worker.metrics_port":             "WORKER_METRICS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if err := validateDatabase(cfg.Database); err != nil {
		return err
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Enabled() {
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	}
	if err := validateSimulation(cfg.Simulation); err != nil {
		return err
	}
	if cfg.Seed.Jobs < 0 || cfg.Seed.Candidates < 0 || cfg.Seed.Assessments < 0 {
		return errors.New("seed counts must not be negative")
	}
	if cfg.Auth.RequireForWrites && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required when auth is required for writes")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}

func validateDatabase(db DatabaseConfig) error {
	switch db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			return errors.New("sqlite path is required")
		}
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", db.Driver)
	}
	if db.Host == "" {
		return errors.New("database host is required")
	}
	if db.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if db.Name == "" {
		return errors.New("database name is required")
	}
	if db.User == "" {
		return errors.New("database user is required")
	}
	if db.Password == "" {
		return errors.New("database password is required")
	}
	if db.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	return nil
}

func validateSimulation(sim SimulationConfig) error {
	if sim.WriteFailureRate < 0 || sim.WriteFailureRate > 1 {
		return errors.New("simulation write failure rate must be within [0,1]")
	}
	if sim.ReorderFailureRate < 0 || sim.ReorderFailureRate > 1 {
		return errors.New("simulation reorder failure rate must be within [0,1]")
	}
	if sim.MinLatency < 0 || sim.MaxLatency < sim.MinLatency {
		return errors.New("simulation latency band is invalid")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
