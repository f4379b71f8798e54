// Package config loads factcheckd configuration.
//
// Values come from a JSON or YAML file, then FACTCHECK_* environment
// variables, then hardcoded defaults for anything still unset.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete factcheckd configuration.
type Config struct {
	Server          ServerConfig        `koanf:"server"`
	Observability   ObservabilityConfig `koanf:"observability"`
	Logging         LoggingConfig       `koanf:"logging"`
	Gemini          GeminiConfig        `koanf:"gemini"`
	RouterModel     ModelConfig         `koanf:"router_model"`
	ResponderModel  ModelConfig         `koanf:"responder_model"`
	Models          []string            `koanf:"models"`
	RetrieverConfig RetrieverConfig     `koanf:"retriever_config"`
	VectorStore     VectorStoreConfig   `koanf:"vector_store"`
	Chat            ChatConfig          `koanf:"chat"`
	Cache           CacheConfig         `koanf:"cache"`
	Chain           ChainConfig         `koanf:"chain"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	Insecure        bool   `koanf:"insecure"`
}

// LoggingConfig is the subset of logging options exposed in the file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// GeminiConfig configures the hosted model provider.
type GeminiConfig struct {
	APIKey            Secret        `koanf:"api_key"`
	EmbeddingModel    string        `koanf:"embedding_model"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
}

// ModelConfig selects a generation model and its sampling parameters.
type ModelConfig struct {
	ID          string   `koanf:"id"`
	MaxTokens   int32    `koanf:"max_tokens"`
	Temperature *float32 `koanf:"temperature"`
}

// RetrieverConfig configures the reference collection.
type RetrieverConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
	EmbeddingModel string `koanf:"embedding_model"`
	TopK           int    `koanf:"top_k"`
	MinPoints      int    `koanf:"min_points"`
	BatchSize      int    `koanf:"batch_size"`
	MaxDocuments   int    `koanf:"max_documents"`
	ChunkSize      int    `koanf:"chunk_size"`
	ChunkOverlap   int    `koanf:"chunk_overlap"`
	DataPath       string `koanf:"data_path"`
}

// VectorStoreConfig picks the store backend.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // "qdrant" or "chromem"
	Chromem  ChromemConfig `koanf:"chromem"`
}

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	Path     string `koanf:"path"` // empty keeps the store in memory
	Compress bool   `koanf:"compress"`
}

// ChatConfig tunes the orchestrator.
type ChatConfig struct {
	SemanticRouting  bool `koanf:"semantic_routing"`
	MaxMessageLength int  `koanf:"max_message_length"`
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	Enabled         bool          `koanf:"enabled"`
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// ChainConfig configures the on-chain request watcher.
type ChainConfig struct {
	RPCURL          string          `koanf:"rpc_url"`
	ContractAddress string          `koanf:"contract_address"`
	ABIPath         string          `koanf:"abi_path"`
	PollInterval    time.Duration   `koanf:"poll_interval"`
	BlockWindow     uint64          `koanf:"block_window"`
	BlockTime       time.Duration   `koanf:"block_time"` // expected interval between blocks
	GasLimit        uint64          `koanf:"gas_limit"`
	GasPriceGwei    *int64          `koanf:"gas_price_gwei"` // 0 asks the node
	ChainID         int64           `koanf:"chain_id"`       // 0 asks the node
	Accounts        []AccountConfig `koanf:"accounts"`
	Retry           RetryConfig     `koanf:"retry"`
	Ledger          LedgerConfig    `koanf:"ledger"`
	MetricsAddr     string          `koanf:"metrics_addr"`
}

// AccountConfig pairs a signing key with the model that answers for it.
type AccountConfig struct {
	Model      string `koanf:"model"`
	Address    string `koanf:"address"`
	PrivateKey Secret `koanf:"private_key"`
}

// RetryConfig bounds per-account submission retries.
type RetryConfig struct {
	MaxAttempts     uint          `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// LedgerConfig configures the persisted seen-set.
type LedgerConfig struct {
	Path       string        `koanf:"path"` // empty keeps the ledger in memory
	MaxEntries int           `koanf:"max_entries"`
	TTL        time.Duration `koanf:"ttl"`
}

// ModelIDs returns the served models. An empty list serves the
// responder model alone.
func (c *Config) ModelIDs() []string {
	if len(c.Models) == 0 {
		return []string{c.ResponderModel.ID}
	}
	return c.Models
}

// Validate checks the HTTP-side configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if c.RouterModel.ID == "" || c.ResponderModel.ID == "" {
		return fmt.Errorf("%w: router_model.id and responder_model.id are required", ErrInvalidConfig)
	}
	for _, m := range []ModelConfig{c.RouterModel, c.ResponderModel} {
		if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
			return fmt.Errorf("%w: temperature %v for %s out of range 0-2", ErrInvalidConfig, *m.Temperature, m.ID)
		}
	}
	if c.Gemini.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: gemini.requests_per_second must be positive", ErrInvalidConfig)
	}
	switch c.VectorStore.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("%w: unknown vector_store.provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	r := c.RetrieverConfig
	if r.CollectionName == "" {
		return fmt.Errorf("%w: retriever_config.collection_name is required", ErrInvalidConfig)
	}
	if r.VectorSize <= 0 || r.TopK <= 0 || r.BatchSize <= 0 {
		return fmt.Errorf("%w: retriever_config vector_size, top_k and batch_size must be positive", ErrInvalidConfig)
	}
	if r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be below chunk_size %d", ErrInvalidConfig, r.ChunkOverlap, r.ChunkSize)
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("%w: chat.max_message_length must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging.format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ValidateChain checks the watcher section. It is separate from Validate
// because the HTTP daemon runs without it.
func (c *Config) ValidateChain() error {
	ch := c.Chain
	if ch.RPCURL == "" {
		return fmt.Errorf("%w: chain.rpc_url is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(ch.ContractAddress, "0x") || len(ch.ContractAddress) != 42 {
		return fmt.Errorf("%w: chain.contract_address %q is not a hex address", ErrInvalidConfig, ch.ContractAddress)
	}
	if len(ch.Accounts) == 0 {
		return fmt.Errorf("%w: chain.accounts must not be empty", ErrInvalidConfig)
	}
	for i, a := range ch.Accounts {
		if a.Model == "" || !a.PrivateKey.IsSet() {
			return fmt.Errorf("%w: chain.accounts[%d] needs model and private_key", ErrInvalidConfig, i)
		}
	}
	if ch.PollInterval <= 0 {
		return fmt.Errorf("%w: chain.poll_interval must be positive", ErrInvalidConfig)
	}
	if ch.Retry.MaxAttempts == 0 {
		return fmt.Errorf("%w: chain.retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if ch.Ledger.MaxEntries <= 0 {
		return fmt.Errorf("%w: chain.ledger.max_entries must be positive", ErrInvalidConfig)
	}
	// A seen entry must outlive the trailing window, or a request still
	// inside it is picked up again after its entry expires.
	if window := time.Duration(ch.BlockWindow) * ch.BlockTime; ch.Ledger.TTL > 0 && ch.Ledger.TTL <= window {
		return fmt.Errorf("%w: chain.ledger.ttl %s must exceed block_window x block_time (%s)", ErrInvalidConfig, ch.Ledger.TTL, window)
	}
	return nil
}
