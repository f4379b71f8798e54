// Package ledger persists the chain watcher's state in badger: the set of
// request ids already handled, a record of every submission attempt, and
// dead letters for submissions that exhausted their retries.
//
// The seen-set is bounded twice: entries expire after a TTL, and when
// the set grows past MaxEntries the oldest entries are evicted.
package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/logging"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const (
	prefixSeen  = "seen/"
	prefixOrder = "order/"
	prefixTx    = "tx/"
	prefixDead  = "dead/"
	seqOrder    = "seq/order"
	seqTx       = "seq/tx"
)

var (
	seenEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "factcheckd",
		Subsystem: "ledger",
		Name:      "seen_entries",
		Help:      "Request ids currently held in the seen-set.",
	})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "factcheckd",
		Subsystem: "ledger",
		Name:      "evictions_total",
		Help:      "Seen-set entries evicted to stay within max_entries.",
	})
)

// Config configures a Ledger.
type Config struct {
	// Path is the badger directory. Empty keeps the ledger in memory.
	Path string
	// MaxEntries bounds the seen-set.
	MaxEntries int
	// TTL expires seen entries; zero keeps them until evicted.
	TTL time.Duration
	// GCInterval runs value log GC on persistent ledgers (0 = 10m).
	GCInterval time.Duration
}

// TxStatus is the outcome of a submission attempt.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSubmitted TxStatus = "submitted"
	TxFailed    TxStatus = "failed"
)

// TxRecord is one submission attempt.
type TxRecord struct {
	RequestID string    `json:"request_id"`
	Claim     string    `json:"claim"`
	Account   string    `json:"account"`
	Model     string    `json:"model"`
	Attempt   int       `json:"attempt"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Status    TxStatus  `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeadLetter is a submission that exhausted its retries.
type DeadLetter struct {
	RequestID string    `json:"request_id"`
	Claim     string    `json:"claim"`
	Account   string    `json:"account"`
	Model     string    `json:"model"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

// Ledger is the watcher's persistent state.
type Ledger struct {
	db     *badger.DB
	cfg    Config
	logger *logging.Logger

	orderSeq *badger.Sequence
	txSeq    *badger.Sequence
	gc       *gcRunner

	// mu serializes seen-set writes. count is exact without a TTL; with
	// one it may run ahead of expirations until the next recount.
	mu        sync.Mutex
	count     int
	recounted time.Time
	recounts  int
}

// maxRecountInterval caps how long expirations may go uncounted.
const maxRecountInterval = time.Minute

// Open opens or creates a ledger.
func Open(cfg Config, logger *logging.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("ledger max entries must be positive, got %d", cfg.MaxEntries)
	}
	logger = logger.Named("ledger")

	db, err := openDB(cfg.Path, logger)
	if err != nil {
		return nil, err
	}

	l := &Ledger{db: db, cfg: cfg, logger: logger}
	if l.orderSeq, err = db.GetSequence([]byte(seqOrder), 100); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger order sequence: %w", err)
	}
	if l.txSeq, err = db.GetSequence([]byte(seqTx), 100); err != nil {
		_ = l.orderSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("ledger tx sequence: %w", err)
	}

	if err := l.enforceBound(); err != nil {
		_ = l.Close()
		return nil, err
	}

	if cfg.Path != "" {
		interval := cfg.GCInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		l.gc = startGC(db, interval, logger)
	}
	return l, nil
}

// Close releases sequences and closes the database.
func (l *Ledger) Close() error {
	if l.gc != nil {
		l.gc.stop()
	}
	var errs []error
	if l.orderSeq != nil {
		errs = append(errs, l.orderSeq.Release())
	}
	if l.txSeq != nil {
		errs = append(errs, l.txSeq.Release())
	}
	errs = append(errs, l.db.Close())
	return errors.Join(errs...)
}

func seenKey(id string) []byte { return []byte(prefixSeen + id) }

func orderKey(seq uint64) []byte {
	k := make([]byte, len(prefixOrder)+8)
	copy(k, prefixOrder)
	binary.BigEndian.PutUint64(k[len(prefixOrder):], seq)
	return k
}

func (l *Ledger) withTTL(e *badger.Entry) *badger.Entry {
	if l.cfg.TTL > 0 {
		return e.WithTTL(l.cfg.TTL)
	}
	return e
}

// Seen reports whether id is in the seen-set.
func (l *Ledger) Seen(id string) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(seenKey(id))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("ledger lookup %s: %w", id, err)
	}
}

// MarkSeen adds id to the seen-set. It returns false when id was already
// present, so check-and-mark is a single step.
func (l *Ledger) MarkSeen(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.orderSeq.Next()
	if err != nil {
		return false, fmt.Errorf("ledger sequence: %w", err)
	}

	added := false
	err = l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(seenKey(id)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		ok := orderKey(seq)
		if err := txn.SetEntry(l.withTTL(badger.NewEntry(seenKey(id), ok))); err != nil {
			return err
		}
		if err := txn.SetEntry(l.withTTL(badger.NewEntry(ok, []byte(id)))); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ledger mark %s: %w", id, err)
	}
	if !added {
		return false, nil
	}

	l.count++
	if l.count > l.cfg.MaxEntries {
		if err := l.trimLocked(); err != nil {
			return true, err
		}
	}
	seenEntries.Set(float64(l.count))
	return true, nil
}

// SeenCount returns the number of live seen-set entries.
func (l *Ledger) SeenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Ledger) enforceBound() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enforceBoundLocked()
}

// trimLocked brings the set back within MaxEntries. It evicts from the
// running count and only rescans when a TTL may have expired entries
// since the last recount.
func (l *Ledger) trimLocked() error {
	if l.cfg.TTL > 0 && time.Since(l.recounted) >= min(l.cfg.TTL, maxRecountInterval) {
		return l.enforceBoundLocked()
	}
	return l.evictLocked(l.count - l.cfg.MaxEntries)
}

// enforceBoundLocked recounts live entries, since expired ones vanish
// without notice, then evicts the oldest until within MaxEntries.
func (l *Ledger) enforceBoundLocked() error {
	n, err := l.countPrefix(prefixSeen)
	if err != nil {
		return err
	}
	l.count = n
	l.recounted = time.Now()
	l.recounts++
	return l.evictLocked(n - l.cfg.MaxEntries)
}

// evictLocked drops the excess oldest live entries.
func (l *Ledger) evictLocked(excess int) error {
	if excess <= 0 {
		seenEntries.Set(float64(l.count))
		return nil
	}

	evicted := 0
	err := l.db.Update(func(txn *badger.Txn) error {
		stale, n, err := oldestEntries(txn, excess)
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		evicted = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger eviction: %w", err)
	}
	l.count -= evicted
	evictions.Add(float64(evicted))
	seenEntries.Set(float64(l.count))
	l.logger.Debug(context.Background(), "seen-set trimmed", zap.Int("entries", l.count), zap.Int("evicted", evicted))
	return nil
}

// oldestEntries walks the order index from the oldest entry and returns
// the keys to delete to drop n live ids, plus how many live ids that is.
func oldestEntries(txn *badger.Txn, n int) ([][]byte, int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixOrder)
	it := txn.NewIterator(opts)
	defer it.Close()

	var stale [][]byte
	live := 0
	for it.Rewind(); it.Valid() && live < n; it.Next() {
		item := it.Item()
		id, err := item.ValueCopy(nil)
		if err != nil {
			return nil, 0, err
		}
		stale = append(stale, item.KeyCopy(nil))

		// The seen key may point at a newer order entry if the id
		// expired and was marked again.
		seen, err := txn.Get(seenKey(string(id)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		} else if err != nil {
			return nil, 0, err
		}
		cur, err := seen.ValueCopy(nil)
		if err != nil {
			return nil, 0, err
		}
		if !bytes.Equal(cur, item.Key()) {
			continue
		}
		stale = append(stale, seenKey(string(id)))
		live++
	}
	return stale, live, nil
}

func (l *Ledger) countPrefix(prefix string) (int, error) {
	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func txKey(rec TxRecord, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixTx, rec.RequestID, seq))
}

func deadKey(requestID, account string) []byte {
	return []byte(prefixDead + requestID + "/" + strings.ToLower(account))
}

// RecordTx appends a submission attempt.
func (l *Ledger) RecordTx(rec TxRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	seq, err := l.txSeq.Next()
	if err != nil {
		return fmt.Errorf("ledger sequence: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode tx record: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(txKey(rec, seq), data)
	})
}

// Transactions returns the attempts recorded for requestID, oldest first.
func (l *Ledger) Transactions(requestID string) ([]TxRecord, error) {
	var out []TxRecord
	err := scanJSON(l.db, prefixTx+requestID+"/", func(rec TxRecord) {
		out = append(out, rec)
	})
	return out, err
}

// AddDeadLetter stores dl, replacing an earlier letter for the same
// request and account.
func (l *Ledger) AddDeadLetter(dl DeadLetter) error {
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deadKey(dl.RequestID, dl.Account), data)
	})
}

// DeadLetter returns the letter for requestID and account.
func (l *Ledger) DeadLetter(requestID, account string) (DeadLetter, error) {
	var dl DeadLetter
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deadKey(requestID, account))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dl)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return dl, fmt.Errorf("dead letter %s/%s: %w", requestID, account, ErrNotFound)
	}
	return dl, err
}

// DeadLetters lists every dead letter ordered by request id.
func (l *Ledger) DeadLetters() ([]DeadLetter, error) {
	var out []DeadLetter
	err := scanJSON(l.db, prefixDead, func(dl DeadLetter) {
		out = append(out, dl)
	})
	return out, err
}

// DeleteDeadLetter removes one letter.
func (l *Ledger) DeleteDeadLetter(requestID, account string) error {
	if _, err := l.DeadLetter(requestID, account); err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(deadKey(requestID, account))
	})
}

// PurgeDeadLetters removes every dead letter and returns how many there were.
func (l *Ledger) PurgeDeadLetters() (int, error) {
	n, err := l.countPrefix(prefixDead)
	if err != nil {
		return 0, err
	}
	if err := l.db.DropPrefix([]byte(prefixDead)); err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	return n, nil
}

func scanJSON[T any](db *badger.DB, prefix string, fn func(T)) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			fn(v)
		}
		return nil
	})
}
