// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the VideoForge server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Pool     PoolConfig
	Fetch    FetchConfig
	Planner  PlannerConfig
	Render   RenderConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
	// StatusTTL bounds how long mirrored job statuses live in Redis.
	StatusTTL time.Duration
}

type AuthConfig struct {
	// APIKeyHashes is a comma-separated list of bcrypt hashes of accepted
	// API keys. Empty disables auth (development only).
	APIKeyHashes   []string
	RequestsPerMin int
}

type PoolConfig struct {
	// CookieDir is scanned for *.txt cookie files at startup.
	CookieDir              string
	Cooldown               time.Duration
	MaxConsecutiveFailures int
	MinSuccessRate         float64
	MinSamples             int
}

type FetchConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	// TimeoutCountsAsBlock decides whether an attempt deadline penalizes the
	// cookie. Default false: blocking usually surfaces as an explicit
	// provider error, so a bare timeout is attributed to the target.
	TimeoutCountsAsBlock bool
}

type PlannerConfig struct {
	Provider string
	OpenAI   OpenAIConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type RenderConfig struct {
	Provider string
	Flux     FluxConfig
}

type FluxConfig struct {
	BaseURL string
	APIKey  string
	Width   int
	Height  int
	Timeout time.Duration
}

type StorageConfig struct {
	Backend string
	S3      S3Config
	FS      FSConfig
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	URLTTL    time.Duration
}

type FSConfig struct {
	Dir    string
	URLTTL time.Duration
}

type PipelineConfig struct {
	Workers       int
	QueueCapacity int
	WorkDir       string

	// Stage weights; must sum to 100.
	BreakdownWeight int
	SourcingWeight  int
	ImagingWeight   int
	AssemblyWeight  int
	ExportWeight    int

	// Per-stage wall-clock estimates feeding job etas.
	BreakdownEstimate int
	SourcingEstimate  int
	ImagingEstimate   int
	AssemblyEstimate  int
	ExportEstimate    int

	SourcingConcurrency int

	FrameRate int
	Width     int
	Height    int
}

var validPlannerProviders = map[string]bool{"openai": true, "mock": true}
var validRenderProviders = map[string]bool{"flux": true, "mock": true}
var validStorageBackends = map[string]bool{"s3": true, "fs": true}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("VIDEOFORGE_PORT", 8080),
			Env:  envString("VIDEOFORGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			StatusTTL: envDuration("JOB_STATUS_TTL", 30*time.Minute),
		},
		Auth: AuthConfig{
			APIKeyHashes:   splitNonEmpty(os.Getenv("API_KEY_HASHES")),
			RequestsPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Pool: PoolConfig{
			CookieDir:              envString("COOKIE_DIR", "cookies"),
			Cooldown:               envDuration("COOKIE_COOLDOWN", 30*time.Minute),
			MaxConsecutiveFailures: envInt("COOKIE_MAX_CONSECUTIVE_FAILURES", 3),
			MinSuccessRate:         envFloat("COOKIE_MIN_SUCCESS_RATE", 0.30),
			MinSamples:             envInt("COOKIE_MIN_SAMPLES", 5),
		},
		Fetch: FetchConfig{
			MaxAttempts:          envInt("FETCH_MAX_ATTEMPTS", 5),
			AttemptTimeout:       envDuration("FETCH_ATTEMPT_TIMEOUT", 90*time.Second),
			TimeoutCountsAsBlock: envBool("FETCH_TIMEOUT_COUNTS_AS_BLOCK", false),
		},
		Planner: PlannerConfig{
			Provider: envString("PLANNER_PROVIDER", "openai"),
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
				Timeout: envDuration("OPENAI_TIMEOUT", 120*time.Second),
			},
		},
		Render: RenderConfig{
			Provider: envString("RENDER_PROVIDER", "flux"),
			Flux: FluxConfig{
				BaseURL: os.Getenv("FLUX_BASE_URL"),
				APIKey:  os.Getenv("FLUX_API_KEY"),
				Width:   envInt("FLUX_WIDTH", 1920),
				Height:  envInt("FLUX_HEIGHT", 1080),
				Timeout: envDuration("FLUX_TIMEOUT", 60*time.Second),
			},
		},
		Storage: StorageConfig{
			Backend: envString("STORAGE_BACKEND", "s3"),
			S3: S3Config{
				Bucket:    os.Getenv("S3_BUCKET"),
				Region:    envString("S3_REGION", "us-east-1"),
				Endpoint:  os.Getenv("S3_ENDPOINT"),
				AccessKey: os.Getenv("S3_ACCESS_KEY"),
				SecretKey: os.Getenv("S3_SECRET_KEY"),
				URLTTL:    envDuration("S3_URL_TTL", 24*time.Hour),
			},
			FS: FSConfig{
				Dir:    envString("STORAGE_FS_DIR", "output/bundles"),
				URLTTL: envDuration("STORAGE_FS_URL_TTL", 24*time.Hour),
			},
		},
		Pipeline: PipelineConfig{
			Workers:       envInt("PIPELINE_WORKERS", 4),
			QueueCapacity: envInt("PIPELINE_QUEUE_CAPACITY", 256),
			WorkDir:       envString("PIPELINE_WORK_DIR", "output/work"),

			BreakdownWeight: envInt("STAGE_BREAKDOWN_WEIGHT", 10),
			SourcingWeight:  envInt("STAGE_SOURCING_WEIGHT", 30),
			ImagingWeight:   envInt("STAGE_IMAGING_WEIGHT", 20),
			AssemblyWeight:  envInt("STAGE_ASSEMBLY_WEIGHT", 30),
			ExportWeight:    envInt("STAGE_EXPORT_WEIGHT", 10),

			BreakdownEstimate: envInt("STAGE_BREAKDOWN_ESTIMATE_SECS", 60),
			SourcingEstimate:  envInt("STAGE_SOURCING_ESTIMATE_SECS", 120),
			ImagingEstimate:   envInt("STAGE_IMAGING_ESTIMATE_SECS", 45),
			AssemblyEstimate:  envInt("STAGE_ASSEMBLY_ESTIMATE_SECS", 10),
			ExportEstimate:    envInt("STAGE_EXPORT_ESTIMATE_SECS", 15),

			SourcingConcurrency: envInt("SOURCING_CONCURRENCY", 3),

			FrameRate: envInt("EXPORT_FRAME_RATE", 30),
			Width:     envInt("EXPORT_WIDTH", 1920),
			Height:    envInt("EXPORT_HEIGHT", 1080),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validPlannerProviders[c.Planner.Provider] {
		return fmt.Errorf("PLANNER_PROVIDER must be one of openai, mock; got %q", c.Planner.Provider)
	}
	if c.Planner.Provider == "openai" && c.Planner.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when PLANNER_PROVIDER is openai")
	}

	if !validRenderProviders[c.Render.Provider] {
		return fmt.Errorf("RENDER_PROVIDER must be one of flux, mock; got %q", c.Render.Provider)
	}
	if c.Render.Provider == "flux" {
		if c.Render.Flux.BaseURL == "" {
			return fmt.Errorf("FLUX_BASE_URL is required when RENDER_PROVIDER is flux")
		}
		if !strings.HasPrefix(c.Render.Flux.BaseURL, "http://") && !strings.HasPrefix(c.Render.Flux.BaseURL, "https://") {
			return fmt.Errorf("FLUX_BASE_URL must start with http:// or https://, got %q", c.Render.Flux.BaseURL)
		}
	}

	if !validStorageBackends[c.Storage.Backend] {
		return fmt.Errorf("STORAGE_BACKEND must be one of s3, fs; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
	}

	weights := c.Pipeline.BreakdownWeight + c.Pipeline.SourcingWeight +
		c.Pipeline.ImagingWeight + c.Pipeline.AssemblyWeight + c.Pipeline.ExportWeight
	if weights != 100 {
		return fmt.Errorf("stage weights must sum to 100, got %d", weights)
	}

	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be positive, got %d", c.Fetch.MaxAttempts)
	}

	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
