package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/qdrant"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "qdrant" (default): connects to the server at retriever.host:port
//   - "chromem": embedded database, in memory unless a path is set
func NewStore(cfg *config.Config, logger *logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		client, err := qdrant.NewGRPCClient(&qdrant.ClientConfig{
			Host: cfg.RetrieverConfig.Host,
			Port: cfg.RetrieverConfig.Port,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		return NewQdrantStore(client, logger), nil

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.VectorStore.Chromem.Path,
			Compress: cfg.VectorStore.Chromem.Compress,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.VectorStore.Provider)
	}
}
