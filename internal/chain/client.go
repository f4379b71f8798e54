package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fyrsmithlabs/factcheckd/internal/chat"
	"github.com/fyrsmithlabs/factcheckd/internal/config"
)

// Client is the subset of the JSON-RPC API the watcher uses.
// *ethclient.Client satisfies it.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return c, nil
}

// Checker runs a fact-check. *chat.Service satisfies it.
type Checker interface {
	Check(ctx context.Context, msg string) (*chat.Result, error)
}

// Account is a signing key paired with the model that answers for it.
type Account struct {
	Model   string
	Address common.Address
	Key     *ecdsa.PrivateKey
	Checker Checker
}

// ParseKey decodes a hex private key, with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// AccountsFromConfig resolves configured accounts against the registry.
// The address is derived from the key; a configured address must match it.
func AccountsFromConfig(accts []config.AccountConfig, reg *chat.Registry) ([]Account, error) {
	out := make([]Account, 0, len(accts))
	for i, a := range accts {
		key, err := ParseKey(a.PrivateKey.Value())
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if a.Address != "" && !strings.EqualFold(a.Address, addr.Hex()) {
			return nil, fmt.Errorf("account %d: address %s does not match key (%s)", i, a.Address, addr.Hex())
		}
		svc, err := reg.ByModel(a.Model)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		out = append(out, Account{
			Model:   a.Model,
			Address: addr,
			Key:     key,
			Checker: svc,
		})
	}
	return out, nil
}
