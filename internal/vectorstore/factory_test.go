package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
)

func TestNewStore_Chromem(t *testing.T) {
	cfg := &config.Config{}
	cfg.VectorStore.Provider = "chromem"

	s, err := NewStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChromemStore{}, s)
}

func TestNewStore_UnknownProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.VectorStore.Provider = "pinecone"

	_, err := NewStore(cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
