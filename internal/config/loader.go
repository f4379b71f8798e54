package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix marks environment overrides.
	EnvPrefix = "FACTCHECK_"

	// DefaultConfigPath is read when no path is given and the file exists.
	DefaultConfigPath = "config/input_parameters.json"
)

// Load reads configuration from configPath (JSON or YAML), then applies
// environment overrides, then defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FACTCHECK_SERVER__HTTP_PORT, ...)
//  2. Config file
//  3. Hardcoded defaults
//
// A missing file is not an error when configPath is empty.
//
// # Environment Variable Mapping
//
// The prefix is stripped, keys are lowercased and a double underscore
// separates nesting levels so single underscores survive in field names:
//
//	FACTCHECK_SERVER__HTTP_PORT          -> server.http_port
//	FACTCHECK_RETRIEVER_CONFIG__HOST     -> retriever_config.host
//	FACTCHECK_CHAIN__LEDGER__MAX_ENTRIES -> chain.ledger.max_entries
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath
	}

	content, err := readConfigFile(configPath)
	switch {
	case err == nil:
		// The YAML parser also reads JSON documents.
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps FACTCHECK_RETRIEVER_CONFIG__HOST to retriever_config.host.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// readConfigFile opens the file once and checks it through the open
// descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties rejects oversized and world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o002 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (world-writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// DefaultModels are served when the file lists none.
var DefaultModels = []string{"gemini-1.5-flash", "gemini-2.0-flash-lite", "gemini-1.5-flash-8b"}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}

	// Observability defaults
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "factcheckd"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Gemini defaults
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Gemini.RequestsPerSecond == 0 {
		cfg.Gemini.RequestsPerSecond = 5
	}
	if cfg.Gemini.Burst == 0 {
		cfg.Gemini.Burst = 10
	}
	if cfg.Gemini.Timeout == 0 {
		cfg.Gemini.Timeout = 60 * time.Second
	}

	if len(cfg.Models) == 0 {
		cfg.Models = append([]string(nil), DefaultModels...)
	}
	if cfg.RouterModel.ID == "" {
		cfg.RouterModel.ID = cfg.Models[0]
	}
	if cfg.ResponderModel.ID == "" {
		cfg.ResponderModel.ID = cfg.Models[0]
	}

	// Retriever defaults
	r := &cfg.RetrieverConfig
	if r.Host == "" {
		r.Host = "localhost"
	}
	if r.Port == 0 {
		r.Port = 6334
	}
	if r.CollectionName == "" {
		r.CollectionName = "pubmed_collection"
	}
	if r.VectorSize == 0 {
		r.VectorSize = 768 // text-embedding-004 dimensions
	}
	if r.EmbeddingModel == "" {
		r.EmbeddingModel = cfg.Gemini.EmbeddingModel
	}
	if r.TopK == 0 {
		r.TopK = 5
	}
	if r.MinPoints == 0 {
		r.MinPoints = 150
	}
	if r.BatchSize == 0 {
		r.BatchSize = 64
	}
	if r.ChunkSize == 0 {
		r.ChunkSize = 8000
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 200
	}
	if r.DataPath == "" {
		r.DataPath = "data/pubmed_test.csv"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "qdrant"
	}

	if cfg.Chat.MaxMessageLength == 0 {
		cfg.Chat.MaxMessageLength = 4096
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 30 * time.Minute
	}

	// Chain watcher defaults
	ch := &cfg.Chain
	if ch.PollInterval == 0 {
		ch.PollInterval = 3 * time.Second
	}
	if ch.BlockWindow == 0 {
		ch.BlockWindow = 10
	}
	if ch.BlockTime == 0 {
		ch.BlockTime = 2 * time.Second
	}
	if ch.GasLimit == 0 {
		ch.GasLimit = 2_000_000
	}
	if ch.GasPriceGwei == nil {
		gwei := int64(50)
		ch.GasPriceGwei = &gwei
	}
	if ch.Retry.MaxAttempts == 0 {
		ch.Retry.MaxAttempts = 3
	}
	if ch.Retry.InitialInterval == 0 {
		ch.Retry.InitialInterval = time.Second
	}
	if ch.Retry.MaxInterval == 0 {
		ch.Retry.MaxInterval = 30 * time.Second
	}
	if ch.Ledger.MaxEntries == 0 {
		ch.Ledger.MaxEntries = 10_000
	}
	if ch.Ledger.TTL == 0 {
		ch.Ledger.TTL = 7 * 24 * time.Hour
	}
	if ch.MetricsAddr == "" {
		ch.MetricsAddr = ":9102"
	}
}
