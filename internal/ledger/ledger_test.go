package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T, max int) *Ledger {
	t.Helper()
	l, err := Open(Config{MaxEntries: max}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOpen_RequiresMaxEntries(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.Error(t, err)
}

func TestMarkSeen(t *testing.T) {
	l := openMem(t, 10)

	added, err := l.MarkSeen("42")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = l.MarkSeen("42")
	require.NoError(t, err)
	assert.False(t, added)

	seen, err := l.Seen("42")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.Seen("43")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.Equal(t, 1, l.SeenCount())
}

func TestMarkSeen_BoundedEvictsOldest(t *testing.T) {
	l := openMem(t, 3)

	for i := 1; i <= 10; i++ {
		_, err := l.MarkSeen(fmt.Sprint(i))
		require.NoError(t, err)
		assert.LessOrEqual(t, l.SeenCount(), 3)
	}

	for i := 1; i <= 7; i++ {
		seen, err := l.Seen(fmt.Sprint(i))
		require.NoError(t, err)
		assert.False(t, seen, "id %d should be evicted", i)
	}
	for i := 8; i <= 10; i++ {
		seen, err := l.Seen(fmt.Sprint(i))
		require.NoError(t, err)
		assert.True(t, seen, "id %d should be kept", i)
	}
}

func TestMarkSeen_EvictsWithoutRescanning(t *testing.T) {
	l := openMem(t, 3)
	require.Equal(t, 1, l.recounts)

	for i := 0; i < 50; i++ {
		_, err := l.MarkSeen(fmt.Sprint(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.SeenCount())
	assert.Equal(t, 1, l.recounts)

	n, err := l.countPrefix(prefixSeen)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMarkSeen_RecountsAfterExpiry(t *testing.T) {
	l, err := Open(Config{MaxEntries: 2, TTL: time.Hour}, nil)
	require.NoError(t, err)
	defer l.Close()

	for _, id := range []string{"1", "2", "3"} {
		_, err := l.MarkSeen(id)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, l.recounts, "recent recount is reused")

	l.recounted = time.Now().Add(-2 * maxRecountInterval)
	_, err = l.MarkSeen("4")
	require.NoError(t, err)
	assert.Equal(t, 2, l.recounts)
	assert.Equal(t, 2, l.SeenCount())
}

func TestMarkSeen_TTL(t *testing.T) {
	l, err := Open(Config{MaxEntries: 10, TTL: time.Second}, nil)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.MarkSeen("1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		seen, err := l.Seen("1")
		return err == nil && !seen
	}, 3*time.Second, 50*time.Millisecond)

	added, err := l.MarkSeen("1")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(Config{Path: dir, MaxEntries: 2}, nil)
	require.NoError(t, err)
	for _, id := range []string{"1", "2", "3"} {
		_, err := l.MarkSeen(id)
		require.NoError(t, err)
	}
	require.NoError(t, l.AddDeadLetter(DeadLetter{RequestID: "3", Account: "0xabc", Attempts: 3, LastError: "nonce too low"}))
	require.NoError(t, l.Close())

	reopened, err := Open(Config{Path: dir, MaxEntries: 2}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.SeenCount())
	added, err := reopened.MarkSeen("3")
	require.NoError(t, err)
	assert.False(t, added)

	dl, err := reopened.DeadLetter("3", "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "nonce too low", dl.LastError)
}

func TestOpen_ShrinksToNewBound(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(Config{Path: dir, MaxEntries: 5}, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := l.MarkSeen(fmt.Sprint(i))
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	reopened, err := Open(Config{Path: dir, MaxEntries: 2}, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 2, reopened.SeenCount())
}

func TestTransactions(t *testing.T) {
	l := openMem(t, 10)

	require.NoError(t, l.RecordTx(TxRecord{RequestID: "7", Account: "0xa", Attempt: 1, Status: TxFailed, Error: "timeout"}))
	require.NoError(t, l.RecordTx(TxRecord{RequestID: "7", Account: "0xa", Attempt: 2, Status: TxSubmitted, TxHash: "0xdead"}))
	require.NoError(t, l.RecordTx(TxRecord{RequestID: "70", Account: "0xa", Attempt: 1, Status: TxSubmitted}))

	recs, err := l.Transactions("7")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, TxFailed, recs[0].Status)
	assert.Equal(t, "0xdead", recs[1].TxHash)
	assert.False(t, recs[1].UpdatedAt.IsZero())

	none, err := l.Transactions("8")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeadLetters(t *testing.T) {
	l := openMem(t, 10)

	_, err := l.DeadLetter("1", "0xa")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, l.AddDeadLetter(DeadLetter{RequestID: "1", Account: "0xa", Attempts: 3}))
	require.NoError(t, l.AddDeadLetter(DeadLetter{RequestID: "2", Account: "0xa", Attempts: 3}))
	require.NoError(t, l.AddDeadLetter(DeadLetter{RequestID: "2", Account: "0xb", Attempts: 3}))

	all, err := l.DeadLetters()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.False(t, all[0].FailedAt.IsZero())

	require.NoError(t, l.DeleteDeadLetter("2", "0xb"))
	assert.ErrorIs(t, l.DeleteDeadLetter("2", "0xb"), ErrNotFound)

	n, err := l.PurgeDeadLetters()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err = l.DeadLetters()
	require.NoError(t, err)
	assert.Empty(t, all)
}
