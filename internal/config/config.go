package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kinesica-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	CompletionModel string `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`

	// Retrieval tuning. Defaults match the values the scorer and selector
	// were calibrated with.
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	RetrievalTopK       int     `envconfig:"RETRIEVAL_TOP_K" default:"10"`
	MaxSelectedSources  int     `envconfig:"MAX_SELECTED_SOURCES" default:"3"`
	DiversityThreshold  float64 `envconfig:"DIVERSITY_THRESHOLD" default:"0.6"`
	ExcellenceThreshold float64 `envconfig:"EXCELLENCE_THRESHOLD" default:"0.85"`

	HistoryWindowDays    int           `envconfig:"HISTORY_WINDOW_DAYS" default:"7"`
	HistoryLimit         int           `envconfig:"HISTORY_LIMIT" default:"10"`
	HistoryRetentionDays int           `envconfig:"HISTORY_RETENTION_DAYS" default:"90"`
	EmbeddingTimeout     time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"10s"`
	CompletionTimeout    time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`

	CompletionMaxTokens   int     `envconfig:"COMPLETION_MAX_TOKENS" default:"1000"`
	CompletionTemperature float32 `envconfig:"COMPLETION_TEMPERATURE" default:"0.4"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KINESICA", &cfg); err != nil {
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
