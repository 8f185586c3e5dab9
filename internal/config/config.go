// Package config turns viper settings into the typed configuration the
// serve command wires together.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Log levels accepted by --log-level.
const (
	LogQuiet    = "quiet"
	LogStandard = "standard"
	LogDebug    = "debug"
)

// Classifier backends.
const (
	BackendHuggingFace = "huggingface"
	BackendRekognition = "rekognition"
)

// DefaultMaxUploadBytes caps multipart uploads at 10 MiB.
const DefaultMaxUploadBytes int64 = 10 << 20

type Config struct {
	Emissions  EmissionsConfig
	Classifier ClassifierConfig
	Suggest    SuggestConfig
	Pipeline   PipelineConfig
	Server     ServerConfig
	Store      StoreConfig
	Archive    ArchiveConfig
	AWS        AWSConfig
}

type EmissionsConfig struct {
	Dataset string
}

type ClassifierConfig struct {
	Backend string
	BaseURL string
	Model   string
	Token   string
	Timeout time.Duration
}

type SuggestConfig struct {
	ProxyURL string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type PipelineConfig struct {
	ClassifyTimeout time.Duration
}

type ServerConfig struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	CORSOrigins    []string
	LogLevel       string
}

type StoreConfig struct {
	DSN string
}

type ArchiveConfig struct {
	Bucket     string
	PublicURL  string
	PublicRead bool
}

type AWSConfig struct {
	Region string
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// SetDefaults registers default values and the environment names viper
// should read. The legacy OWID_CSV_PATH variable is honored for the
// reference dataset.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("emissions.dataset", "data/owid.csv")

	v.SetDefault("classifier.backend", BackendHuggingFace)
	v.SetDefault("classifier.base-url", "https://api-inference.huggingface.co")
	v.SetDefault("classifier.model", "openai/clip-vit-base-patch32")
	v.SetDefault("classifier.token", "")
	v.SetDefault("classifier.timeout", 30*time.Second)

	v.SetDefault("suggest.proxy-url", "http://mcp-compose-http-proxy:9876")
	v.SetDefault("suggest.api-key", "")
	v.SetDefault("suggest.model", "google/gemini-2.0-flash-lite-001")
	v.SetDefault("suggest.timeout", 60*time.Second)

	v.SetDefault("pipeline.classify-timeout", 45*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max-upload-bytes", DefaultMaxUploadBytes)
	v.SetDefault("server.cors-origins", []string{
		"http://localhost:8080",
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	})
	v.SetDefault("server.log-level", LogStandard)

	v.SetDefault("store.dsn", ":memory:")

	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.public-url", "")
	v.SetDefault("archive.public-read", false)

	v.SetDefault("aws.region", "")

	_ = v.BindEnv("emissions.dataset", "GREENBITE_EMISSIONS_DATASET", "OWID_CSV_PATH")
	_ = v.BindEnv("aws.region", "GREENBITE_AWS_REGION", "AWS_REGION")
}

// Load builds a Config from v. Call SetDefaults first.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Emissions: EmissionsConfig{
			Dataset: strings.TrimSpace(v.GetString("emissions.dataset")),
		},
		Classifier: ClassifierConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("classifier.backend"))),
			BaseURL: v.GetString("classifier.base-url"),
			Model:   v.GetString("classifier.model"),
			Token:   v.GetString("classifier.token"),
			Timeout: v.GetDuration("classifier.timeout"),
		},
		Suggest: SuggestConfig{
			ProxyURL: v.GetString("suggest.proxy-url"),
			APIKey:   v.GetString("suggest.api-key"),
			Model:    v.GetString("suggest.model"),
			Timeout:  v.GetDuration("suggest.timeout"),
		},
		Pipeline: PipelineConfig{
			ClassifyTimeout: v.GetDuration("pipeline.classify-timeout"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MaxUploadBytes: v.GetInt64("server.max-upload-bytes"),
			CORSOrigins:    v.GetStringSlice("server.cors-origins"),
			LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("server.log-level"))),
		},
		Store: StoreConfig{
			DSN: v.GetString("store.dsn"),
		},
		Archive: ArchiveConfig{
			Bucket:     strings.TrimSpace(v.GetString("archive.bucket")),
			PublicURL:  v.GetString("archive.public-url"),
			PublicRead: v.GetBool("archive.public-read"),
		},
		AWS: AWSConfig{
			Region: v.GetString("aws.region"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case BackendHuggingFace, BackendRekognition:
	default:
		return fmt.Errorf("invalid classifier.backend %q (expected huggingface|rekognition)", c.Classifier.Backend)
	}
	switch c.Server.LogLevel {
	case LogQuiet, LogStandard, LogDebug:
	default:
		return fmt.Errorf("invalid --log-level %q (expected quiet|standard|debug)", c.Server.LogLevel)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max-upload-bytes must be positive")
	}
	if c.Pipeline.ClassifyTimeout < 0 {
		return fmt.Errorf("pipeline.classify-timeout must not be negative")
	}
	return nil
}
