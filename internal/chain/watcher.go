// Package chain watches a verifier contract for fact-check requests and
// answers them with signed transactions.
//
// The watcher polls RequestSubmitted logs over a trailing block window,
// drops request ids the ledger has already seen, and for every configured
// account runs the account's model and submits the result through
// submitVerification. Failed submissions are retried with exponential
// backoff and end up as dead letters in the ledger.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/chat"
	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/ledger"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
)

// State is the watcher's activity.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options tunes a Watcher.
type Options struct {
	PollInterval time.Duration
	BlockWindow  uint64
	GasLimit     uint64
	// GasPrice in wei; nil asks the node.
	GasPrice *big.Int
	// ChainID for EIP-155 signing; nil asks the node.
	ChainID *big.Int

	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// OptionsFromConfig converts the chain section.
func OptionsFromConfig(c config.ChainConfig) Options {
	opts := Options{
		PollInterval:    c.PollInterval,
		BlockWindow:     c.BlockWindow,
		GasLimit:        c.GasLimit,
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
	if c.GasPriceGwei != nil && *c.GasPriceGwei > 0 {
		opts.GasPrice = new(big.Int).Mul(big.NewInt(*c.GasPriceGwei), big.NewInt(params.GWei))
	}
	if c.ChainID > 0 {
		opts.ChainID = big.NewInt(c.ChainID)
	}
	return opts
}

// Watcher answers on-chain fact-check requests.
type Watcher struct {
	client   Client
	contract *Contract
	ledger   *ledger.Ledger
	accounts []Account
	opts     Options
	logger   *logging.Logger

	state   atomic.Int32
	chainID *big.Int
}

// NewWatcher creates a watcher. Accounts are served in order.
func NewWatcher(client Client, contract *Contract, led *ledger.Ledger, accounts []Account, opts Options, logger *logging.Logger) (*Watcher, error) {
	if client == nil || contract == nil || led == nil {
		return nil, errors.New("client, contract and ledger are required")
	}
	if len(accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = 2_000_000
	}
	return &Watcher{
		client:   client,
		contract: contract,
		ledger:   led,
		accounts: accounts,
		opts:     opts,
		logger:   logger.Named("chain"),
		chainID:  opts.ChainID,
	}, nil
}

// State returns what the watcher is doing.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
	watcherState.Set(float64(s))
}

// Run polls until ctx is cancelled. Poll errors are logged and the
// next tick tries again.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "chain watcher started",
		zap.String("contract", w.contract.Address().Hex()),
		zap.Int("accounts", len(w.accounts)),
		zap.Duration("poll_interval", w.opts.PollInterval),
		zap.Uint64("block_window", w.opts.BlockWindow),
	)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			pollErrors.Inc()
			w.logger.Warn(ctx, "poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info(context.Background(), "chain watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll handles one block window and returns how many new requests it
// processed.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	headBlock.Set(float64(head))

	from := uint64(0)
	if head > w.opts.BlockWindow {
		from = head - w.opts.BlockWindow
	}
	logs, err := w.client.FilterLogs(ctx, w.contract.FilterQuery(from, head))
	if err != nil {
		return 0, fmt.Errorf("filter logs [%d, %d]: %w", from, head, err)
	}

	processed := 0
	for _, lg := range logs {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		req, err := w.contract.DecodeRequest(lg)
		if err != nil {
			w.logger.Warn(ctx, "skipping log",
				zap.Uint64("block", lg.BlockNumber),
				zap.String("tx", lg.TxHash.Hex()),
				zap.Error(err),
			)
			continue
		}

		id := req.ID.String()
		fresh, err := w.ledger.MarkSeen(id)
		if err != nil {
			return processed, fmt.Errorf("mark %s seen: %w", id, err)
		}
		if !fresh {
			requestsSeen.WithLabelValues("duplicate").Inc()
			continue
		}
		requestsSeen.WithLabelValues("new").Inc()

		w.handle(ctx, req)
		processed++
	}
	return processed, nil
}

func (w *Watcher) handle(ctx context.Context, req Request) {
	w.setState(StateProcessing)
	defer w.setState(StateIdle)

	ctx = logging.WithChainRequestID(ctx, req.ID.String())
	w.logger.Info(ctx, "request received",
		zap.Uint64("block", req.BlockNumber),
		zap.Int("claim_length", len(req.Text)),
	)

	for _, acct := range w.accounts {
		if ctx.Err() != nil {
			return
		}
		w.answer(logging.WithModel(ctx, acct.Model), req, acct)
	}
}

// answer runs the account's model and submits the result, retrying both
// steps until the attempt budget runs out.
func (w *Watcher) answer(ctx context.Context, req Request, acct Account) {
	start := time.Now()
	var (
		payload []byte
		attempt int
	)

	op := func() (common.Hash, error) {
		attempt++
		if payload == nil {
			p, err := w.respond(ctx, req, acct)
			if err != nil {
				w.record(req, acct, attempt, common.Hash{}, err)
				return common.Hash{}, err
			}
			payload = p
		}
		hash, err := w.submit(ctx, req, acct, payload)
		w.record(req, acct, attempt, hash, err)
		return hash, err
	}

	hash, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(w.backOff()),
		backoff.WithMaxTries(w.opts.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			submissions.WithLabelValues(acct.Model, "retry").Inc()
			w.logger.Warn(ctx, "submission failed, retrying",
				zap.String("account", acct.Address.Hex()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	submitDuration.WithLabelValues(acct.Model).Observe(time.Since(start).Seconds())

	if err == nil {
		submissions.WithLabelValues(acct.Model, "submitted").Inc()
		w.logger.Info(ctx, "verification submitted",
			zap.String("account", acct.Address.Hex()),
			zap.String("tx", hash.Hex()),
			zap.Int("attempts", attempt),
		)
		return
	}

	submissions.WithLabelValues(acct.Model, "dead_letter").Inc()
	w.logger.Error(ctx, "submission abandoned",
		zap.String("account", acct.Address.Hex()),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	dl := ledger.DeadLetter{
		RequestID: req.ID.String(),
		Claim:     req.Text,
		Account:   acct.Address.Hex(),
		Model:     acct.Model,
		Attempts:  attempt,
		LastError: err.Error(),
	}
	if lerr := w.ledger.AddDeadLetter(dl); lerr != nil {
		w.logger.Error(ctx, "failed to store dead letter", zap.Error(lerr))
	}
}

func (w *Watcher) respond(ctx context.Context, req Request, acct Account) ([]byte, error) {
	res, err := acct.Checker.Check(ctx, req.Text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrMessageTooLong) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("check: %w", err)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("encode result: %w", err))
	}
	return payload, nil
}

func (w *Watcher) submit(ctx context.Context, req Request, acct Account, payload []byte) (common.Hash, error) {
	data, err := w.contract.PackSubmit(req.ID, string(payload))
	if err != nil {
		return common.Hash{}, backoff.Permanent(err)
	}

	chainID, err := w.resolveChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice := w.opts.GasPrice
	if gasPrice == nil {
		if gasPrice, err = w.client.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
	}
	nonce, err := w.client.PendingNonceAt(ctx, acct.Address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce for %s: %w", acct.Address.Hex(), err)
	}

	to := w.contract.Address()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      w.opts.GasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), acct.Key)
	if err != nil {
		return common.Hash{}, backoff.Permanent(fmt.Errorf("sign: %w", err))
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

func (w *Watcher) resolveChainID(ctx context.Context) (*big.Int, error) {
	if w.chainID != nil {
		return w.chainID, nil
	}
	id, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	w.chainID = id
	return id, nil
}

func (w *Watcher) record(req Request, acct Account, attempt int, hash common.Hash, err error) {
	rec := ledger.TxRecord{
		RequestID: req.ID.String(),
		Claim:     req.Text,
		Account:   acct.Address.Hex(),
		Model:     acct.Model,
		Attempt:   attempt,
		Status:    ledger.TxSubmitted,
	}
	if err != nil {
		rec.Status = ledger.TxFailed
		rec.Error = err.Error()
	} else {
		rec.TxHash = hash.Hex()
	}
	if lerr := w.ledger.RecordTx(rec); lerr != nil {
		w.logger.Warn(context.Background(), "failed to record transaction", zap.Error(lerr))
	}
}

func (w *Watcher) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if w.opts.InitialInterval > 0 {
		b.InitialInterval = w.opts.InitialInterval
	}
	if w.opts.MaxInterval > 0 {
		b.MaxInterval = w.opts.MaxInterval
	}
	return b
}
