package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the enumerated environment configuration surface: STORAGE_TYPE,
// AUTH_SIGNING_KEY, API_KEY, COMPLETER_MODEL (opaque to core),
// EMBEDDER_MODEL (opaque), MAX_REQUEST_BYTES, ALLOWED_ORIGINS,
// TRACE_MAX_RECORDS, TRACE_MAX_AGE_SECONDS.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// StorageType selects the C1 Storage backend: file, fileshare, blob, doc_db.
	StorageType string `envconfig:"STORAGE_TYPE" default:"file"`
	StorageRoot string `envconfig:"STORAGE_ROOT" default:"./data"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SkipMigrations bool   `envconfig:"SKIP_MIGRATIONS" default:"false"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kbcore-assets"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	CompleterModel string `envconfig:"COMPLETER_MODEL" default:"gpt-4o-mini"`
	EmbedderModel  string `envconfig:"EMBEDDER_MODEL" default:"text-embedding-3-small"`

	AuthSigningKey string `envconfig:"AUTH_SIGNING_KEY" required:"true"`
	APIKey         string `envconfig:"API_KEY"`

	MaxRequestBytes int64  `envconfig:"MAX_REQUEST_BYTES" default:"10485760"`
	AllowedOrigins  string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	RateLimitPerSecond float64 `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	TraceMaxRecords    int `envconfig:"TRACE_MAX_RECORDS" default:"10000"`
	TraceMaxAgeSeconds int `envconfig:"TRACE_MAX_AGE_SECONDS" default:"604800"`

	SessionDBPath string `envconfig:"SESSION_DB_PATH" default:"./data/sessions.db"`
	TraceDBPath   string `envconfig:"TRACE_DB_PATH" default:"./data/traces.db"`

	WebSearchBaseURL string `envconfig:"WEB_SEARCH_BASE_URL"`
	DisabledTools    string `envconfig:"DISABLED_TOOLS"`
}

// DisabledToolNames splits DisabledTools on commas, trimming whitespace and
// dropping empty entries.
func (c *Config) DisabledToolNames() []string {
	if c.DisabledTools == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(c.DisabledTools, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KBCORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
