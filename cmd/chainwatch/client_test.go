package main

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// nopClient is a chain with no blocks.
type nopClient struct{}

func (nopClient) BlockNumber(context.Context) (uint64, error) { return 0, nil }
func (nopClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (nopClient) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 0, nil }
func (nopClient) SuggestGasPrice(context.Context) (*big.Int, error)              { return big.NewInt(1), nil }
func (nopClient) ChainID(context.Context) (*big.Int, error)                      { return big.NewInt(1), nil }
func (nopClient) SendTransaction(context.Context, *types.Transaction) error      { return nil }
