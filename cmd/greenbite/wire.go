package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"greenbite/internal/archive"
	"greenbite/internal/classifier"
	"greenbite/internal/config"
	"greenbite/internal/emissions"
	"greenbite/internal/logging"
	"greenbite/internal/pipeline"
	"greenbite/internal/storage"
	"greenbite/internal/suggest"
)

// loggers holds one prefixed logger per component. Nil loggers are silent.
type loggers struct {
	server     *logging.Logger
	pipeline   *logging.Logger
	emissions  *logging.Logger
	suggest    *logging.Logger
	classifier *logging.Logger
}

func newLoggers(level string, w io.Writer) loggers {
	if level == config.LogQuiet {
		return loggers{}
	}
	base := &logging.Logger{Writer: w}
	l := loggers{
		server:    base.With("Server:", logging.FgMagenta),
		pipeline:  base.With("Pipeline:", logging.FgGreen),
		emissions: base.With("Emissions:", logging.FgYellow),
		suggest:   base.With("Suggest:", logging.FgYellow),
	}
	// Per-label probabilities are only printed in debug mode.
	if level == config.LogDebug {
		l.classifier = base.With("Classifier:", logging.FgCyan)
	}
	return l
}

type app struct {
	Pipeline *pipeline.Pipeline
	Store    *storage.SQLiteStorage
}

func (a *app) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// buildApp wires every shared component once; the result is read-only
// across requests.
func buildApp(ctx context.Context, cfg *config.Config, logs loggers) (*app, error) {
	var awsCfg *aws.Config
	if cfg.Classifier.Backend == config.BackendRekognition || cfg.Archive.Bucket != "" {
		c, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		awsCfg = &c
	}

	clf, err := buildClassifier(cfg, awsCfg, logs)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.SeedDemo(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to seed demo data: %w", err)
	}

	p := &pipeline.Pipeline{
		Classifier:      clf,
		Resolver:        buildResolver(cfg, logs),
		Suggester:       buildSuggester(cfg, logs),
		Store:           store,
		ClassifyTimeout: cfg.Pipeline.ClassifyTimeout,
		Log:             logs.pipeline,
	}
	if awsCfg != nil && cfg.Archive.Bucket != "" {
		a := archive.NewS3Archiver(s3.NewFromConfig(*awsCfg), cfg.Archive.Bucket, cfg.Archive.PublicURL)
		a.PublicRead = cfg.Archive.PublicRead
		p.Archive = a
	}

	return &app{Pipeline: p, Store: store}, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return c, nil
}

func buildResolver(cfg *config.Config, logs loggers) *emissions.Resolver {
	r, _ := emissions.NewResolverFromDataset(cfg.Emissions.Dataset, logs.emissions)
	return r
}

func buildSuggester(cfg *config.Config, logs loggers) *suggest.Service {
	completer := suggest.NewGatewayCompleter(suggest.GatewayConfig{
		ProxyURL: cfg.Suggest.ProxyURL,
		APIKey:   cfg.Suggest.APIKey,
		Model:    cfg.Suggest.Model,
		Timeout:  cfg.Suggest.Timeout,
	})
	return suggest.NewService(completer, logs.suggest)
}

func buildClassifier(cfg *config.Config, awsCfg *aws.Config, logs loggers) (*classifier.Classifier, error) {
	scorer, err := buildScorer(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	return classifier.New(scorer, classifier.DefaultVocabulary, logs.classifier), nil
}

func buildScorer(cfg *config.Config, awsCfg *aws.Config) (classifier.Scorer, error) {
	switch cfg.Classifier.Backend {
	case config.BackendHuggingFace:
		return &classifier.HuggingFaceScorer{
			Client:  &http.Client{Timeout: cfg.Classifier.Timeout},
			BaseURL: cfg.Classifier.BaseURL,
			Model:   cfg.Classifier.Model,
			Token:   cfg.Classifier.Token,
		}, nil
	case config.BackendRekognition:
		if awsCfg == nil {
			return nil, fmt.Errorf("rekognition backend needs AWS configuration")
		}
		return classifier.NewRekognitionScorer(rekognition.NewFromConfig(*awsCfg)), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}
