// Package config loads server configuration from the environment and
// review-profile files from YAML.
package config

import (
	"os"
	"strconv"

	"github.com/Covenant-Systems/pactum/pkg/archive"
)

// Config holds server configuration. Zero values fall back to local
// development defaults in Load.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string

	// PolicyFile points at a YAML routing policy pack; empty means the
	// built-in default policy.
	PolicyFile string
	// ProfilesDir holds review-profile YAML files.
	ProfilesDir string

	MaxNegotiationRounds int

	// AuthSecret is the root secret API tokens derive from. Empty
	// disables bearer auth, for local development only.
	AuthSecret string

	// RedisURL enables the distributed rate limiter; empty falls back
	// to the in-process limiter.
	RedisURL       string
	RateLimitRPS   float64
	RateLimitBurst int

	// OTLPEndpoint enables trace and metric export when set.
	OTLPEndpoint string

	ArchiveBackend   string
	ArchiveDir       string
	ArchiveS3Bucket  string
	ArchiveS3Region  string
	ArchiveS3URL     string
	ArchiveS3Prefix  string
	ArchiveGCSBucket string
	ArchiveGCSPrefix string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:        envOr("PORT", "8080"),
		LogLevel:    envOr("LOG_LEVEL", "INFO"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PolicyFile:  os.Getenv("POLICY_FILE"),
		ProfilesDir: envOr("PROFILES_DIR", "profiles"),

		MaxNegotiationRounds: envInt("MAX_NEGOTIATION_ROUNDS", 3),

		AuthSecret: os.Getenv("AUTH_SECRET"),

		RedisURL:       os.Getenv("REDIS_URL"),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),

		ArchiveBackend:   envOr("ARCHIVE_BACKEND", "fs"),
		ArchiveDir:       envOr("ARCHIVE_DIR", "data/archive"),
		ArchiveS3Bucket:  os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:  envOr("ARCHIVE_S3_REGION", os.Getenv("AWS_REGION")),
		ArchiveS3URL:     os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Prefix:  os.Getenv("ARCHIVE_S3_PREFIX"),
		ArchiveGCSBucket: os.Getenv("ARCHIVE_GCS_BUCKET"),
		ArchiveGCSPrefix: os.Getenv("ARCHIVE_GCS_PREFIX"),
	}
}

// Archive maps the flat env settings onto the archive backend config.
func (c *Config) Archive() archive.Config {
	return archive.Config{
		Backend: archive.Backend(c.ArchiveBackend),
		Dir:     c.ArchiveDir,
		S3: archive.S3Config{
			Bucket:   c.ArchiveS3Bucket,
			Region:   c.ArchiveS3Region,
			Endpoint: c.ArchiveS3URL,
			Prefix:   c.ArchiveS3Prefix,
		},
		GCS: archive.GCSConfig{
			Bucket: c.ArchiveGCSBucket,
			Prefix: c.ArchiveGCSPrefix,
		},
	}
}

// LiteMode reports whether the server should run on embedded SQLite:
// no DATABASE_URL means no Postgres.
func (c *Config) LiteMode() bool {
	return c.DatabaseURL == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
