package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lumora-ai/lumora/internal/domain"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"lumora-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Local file store used when S3 is not configured.
	UploadDir string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	MaxFileSize       int64    `envconfig:"MAX_FILE_SIZE" default:"10485760"`
	AllowedExtensions []string `envconfig:"ALLOWED_EXTENSIONS" default:".txt,.pdf"`

	TopK             int `envconfig:"TOP_K" default:"5"`
	MaxContextLength int `envconfig:"MAX_CONTEXT_LENGTH" default:"8000"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LUMORA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Validate rejects configurations the pipeline cannot run with. Invalid
// chunk settings are fatal at startup rather than per-document.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "chunk size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "chunk overlap cannot be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrInvalidChunkConfig
	}
	if c.MaxFileSize <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "max file size must be positive")
	}
	if c.TopK <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "top-k must be positive")
	}
	if c.MaxContextLength <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "max context length must be positive")
	}
	for _, ext := range c.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return domain.NewDomainError(domain.ErrCodeConfiguration,
				fmt.Sprintf("allowed extension %q must start with a dot", ext))
		}
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
