package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeConfig(t, "input_parameters.json", `{
  "router_model": {"id": "gemini-2.0-flash-lite", "max_tokens": 50, "temperature": 0.2},
  "responder_model": {"id": "gemini-1.5-flash"},
  "retriever_config": {
    "host": "qdrant",
    "port": 6334,
    "collection_name": "pubmed_collection",
    "vector_size": 768,
    "top_k": 3
  },
  "chat": {"semantic_routing": true}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash-lite", cfg.RouterModel.ID)
	assert.Equal(t, int32(50), cfg.RouterModel.MaxTokens)
	require.NotNil(t, cfg.RouterModel.Temperature)
	assert.InDelta(t, 0.2, *cfg.RouterModel.Temperature, 1e-6)
	assert.Nil(t, cfg.ResponderModel.Temperature)
	assert.Equal(t, "qdrant", cfg.RetrieverConfig.Host)
	assert.Equal(t, 3, cfg.RetrieverConfig.TopK)
	assert.True(t, cfg.Chat.SemanticRouting)

	// untouched sections fall back to defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 150, cfg.RetrieverConfig.MinPoints)
	assert.Equal(t, DefaultModels, cfg.Models)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_port: 9000
  shutdown_timeout: 5s
gemini:
  api_key: sk-test
chain:
  poll_interval: 1s
  gas_price_gwei: 0
  accounts:
    - model: gemini-1.5-flash
      private_key: "0xabc"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sk-test", cfg.Gemini.APIKey.Value())
	assert.Equal(t, time.Second, cfg.Chain.PollInterval)
	require.NotNil(t, cfg.Chain.GasPriceGwei)
	assert.Equal(t, int64(0), *cfg.Chain.GasPriceGwei)
	require.Len(t, cfg.Chain.Accounts, 1)
	assert.Equal(t, "0xabc", cfg.Chain.Accounts[0].PrivateKey.Value())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server:\n  http_port: 9000\n")

	t.Setenv("FACTCHECK_SERVER__HTTP_PORT", "9191")
	t.Setenv("FACTCHECK_RETRIEVER_CONFIG__HOST", "qdrant.internal")
	t.Setenv("FACTCHECK_CHAIN__LEDGER__MAX_ENTRIES", "42")
	t.Setenv("FACTCHECK_GEMINI__API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "qdrant.internal", cfg.RetrieverConfig.Host)
	assert.Equal(t, 42, cfg.Chain.Ledger.MaxEntries)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey.Value())
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "factcheckd", cfg.Observability.ServiceName)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, 4096, cfg.Chat.MaxMessageLength)
	assert.False(t, cfg.Chat.SemanticRouting)
	assert.Equal(t, uint64(10), cfg.Chain.BlockWindow)
	assert.Equal(t, uint64(2_000_000), cfg.Chain.GasLimit)
	require.NotNil(t, cfg.Chain.GasPriceGwei)
	assert.Equal(t, int64(50), *cfg.Chain.GasPriceGwei)
	assert.Equal(t, 3*time.Second, cfg.Chain.PollInterval)
	assert.Equal(t, cfg.Gemini.EmbeddingModel, cfg.RetrieverConfig.EmbeddingModel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	path := writeConfig(t, "big.yaml", string(big))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", "vector_store:\n  provider: pinecone\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"FACTCHECK_SERVER__HTTP_PORT":          "server.http_port",
		"FACTCHECK_RETRIEVER_CONFIG__TOP_K":    "retriever_config.top_k",
		"FACTCHECK_CHAIN__RETRY__MAX_ATTEMPTS": "chain.retry.max_attempts",
		"FACTCHECK_MODELS":                     "models",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
