package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/agroscan/internal/config"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/mock"
	"github.com/bryanwahyu/agroscan/internal/infra/storage"
)

func TestBuildLogger(t *testing.T) {
	log, err := buildLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = buildLogger("loud", false)
	assert.Error(t, err)
}

func TestBuildAnalyzer(t *testing.T) {
	cfg := config.Default()
	a, err := buildAnalyzer(cfg)
	require.NoError(t, err)
	require.IsType(t, &mock.Analyzer{}, a)
	assert.Equal(t, cfg.Analysis.MockDelay, a.(*mock.Analyzer).Delay)

	cfg.Analysis.Backend = "openai"
	cfg.Analysis.OpenAIAPIKey = "sk-test"
	a, err = buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", a.Name())

	cfg.Analysis.Backend = "tflite"
	_, err = buildAnalyzer(cfg)
	assert.Error(t, err)
}

func TestBuildStoreDefaultsToMemory(t *testing.T) {
	s, err := buildStore(context.Background(), config.Default())
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)
}

func TestOpenAuditDisabled(t *testing.T) {
	a, err := openAudit(context.Background(), config.Default())
	require.NoError(t, err)
	assert.Nil(t, a.Repository())
	a.Close()
}
