package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/agroscan/internal/config"
	domai "github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/audit"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/gemini"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/mock"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/agroscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/agroscan/internal/infra/db/postgres"
	"github.com/bryanwahyu/agroscan/internal/infra/storage"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func buildLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// blobStore is an image store that can also report its health.
type blobStore interface {
	diagnosis.ImageStore
	Check(ctx context.Context) error
}

func buildStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	switch cfg.Storage.Driver {
	case "minio":
		m := cfg.Storage.Minio
		return storage.NewMinio(ctx, m.Endpoint, m.Region, m.BucketName, m.AccessKey, m.SecretKey, m.UseSSL)
	default:
		return storage.NewMemory(), nil
	}
}

func buildAnalyzer(cfg *config.Config) (domai.Analyzer, error) {
	a := cfg.Analysis
	switch a.Backend {
	case "openai":
		return openai.NewClientWithBaseURL(a.OpenAIAPIKey, a.OpenAIModel, a.OpenAIURL), nil
	case "gemini":
		return gemini.NewClient(a.GeminiAPIKey, a.GeminiModel), nil
	case "mock":
		return mock.New(a.MockDelay), nil
	default:
		return nil, fmt.Errorf("unknown analysis backend %q", a.Backend)
	}
}

// auditRepo is what both SQL repositories offer.
type auditRepo interface {
	audit.Repository
	Migrate(ctx context.Context) error
	Check(ctx context.Context) error
}

// auditDB holds the optional audit connection. A zero value means disabled.
type auditDB struct {
	db   *sql.DB
	repo auditRepo
}

// Repository returns nil (an untyped nil interface) when audit is disabled.
func (a *auditDB) Repository() audit.Repository {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

func (a *auditDB) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func openAudit(ctx context.Context, cfg *config.Config) (*auditDB, error) {
	switch cfg.Audit.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect error: %w", err)
		}
		return &auditDB{db: db, repo: mysqlp.NewAuditRepository(db)}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect error: %w", err)
		}
		return &auditDB{db: db, repo: postgres.NewAuditRepository(db)}, nil
	default:
		return &auditDB{}, nil
	}
}
