package chain

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tidwall/gjson"
)

const (
	eventRequestSubmitted = "RequestSubmitted"
	methodSubmit          = "submitVerification"

	argRequestID = "requestId"
	argText      = "text"
)

// ErrUnknownEvent is returned for logs that are not RequestSubmitted events.
var ErrUnknownEvent = errors.New("unknown event")

//go:embed abi/verifier.json
var defaultABI []byte

// Request is a decoded RequestSubmitted event.
type Request struct {
	ID          *big.Int
	Text        string
	BlockNumber uint64
	TxHash      common.Hash
}

// Contract binds the verifier ABI to a deployed address.
type Contract struct {
	address common.Address
	abi     abi.ABI
	event   abi.Event
}

// LoadContract parses the ABI at abiPath, or the built-in verifier ABI
// when abiPath is empty. Hardhat/Truffle artifacts with an "abi" field
// are accepted as well as bare ABI arrays.
func LoadContract(address, abiPath string) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}

	data := defaultABI
	if abiPath != "" {
		raw, err := os.ReadFile(abiPath)
		if err != nil {
			return nil, fmt.Errorf("read abi: %w", err)
		}
		data = raw
	}
	if field := gjson.GetBytes(data, "abi"); field.Exists() && field.IsArray() {
		data = []byte(field.Raw)
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	event, ok := parsed.Events[eventRequestSubmitted]
	if !ok {
		return nil, fmt.Errorf("abi has no %s event", eventRequestSubmitted)
	}
	if _, ok := parsed.Methods[methodSubmit]; !ok {
		return nil, fmt.Errorf("abi has no %s method", methodSubmit)
	}

	return &Contract{
		address: common.HexToAddress(address),
		abi:     parsed,
		event:   event,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// FilterQuery selects RequestSubmitted logs in [from, to].
func (c *Contract) FilterQuery(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.event.ID}},
	}
}

// DecodeRequest decodes a RequestSubmitted log. Indexed and non-indexed
// arguments are both supported.
func (c *Contract) DecodeRequest(lg types.Log) (Request, error) {
	if len(lg.Topics) == 0 || lg.Topics[0] != c.event.ID {
		return Request{}, ErrUnknownEvent
	}

	fields := make(map[string]interface{})
	if err := c.event.Inputs.NonIndexed().UnpackIntoMap(fields, lg.Data); err != nil {
		return Request{}, fmt.Errorf("unpack %s: %w", eventRequestSubmitted, err)
	}
	var indexed abi.Arguments
	for _, arg := range c.event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			return Request{}, fmt.Errorf("parse %s topics: %w", eventRequestSubmitted, err)
		}
	}

	id, ok := fields[argRequestID].(*big.Int)
	if !ok {
		return Request{}, fmt.Errorf("%s: missing %s", eventRequestSubmitted, argRequestID)
	}
	text, ok := fields[argText].(string)
	if !ok {
		return Request{}, fmt.Errorf("%s: missing %s", eventRequestSubmitted, argText)
	}

	return Request{
		ID:          id,
		Text:        text,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}

// PackSubmit encodes a submitVerification call.
func (c *Contract) PackSubmit(requestID *big.Int, response string) ([]byte, error) {
	data, err := c.abi.Pack(methodSubmit, requestID, response)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", methodSubmit, err)
	}
	return data, nil
}
