package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/factcheckd/internal/chain"
	"github.com/fyrsmithlabs/factcheckd/internal/ledger"
)

func TestRenderDeadLetters(t *testing.T) {
	out := renderDeadLetters([]ledger.DeadLetter{{
		RequestID: "17",
		Model:     "gemini-1.5-flash",
		Account:   "0xAbC",
		Attempts:  3,
		Claim:     strings.Repeat("long claim ", 10),
		LastError: "send: nonce too low",
		FailedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})

	assert.Contains(t, out, "REQUEST")
	assert.Contains(t, out, "17")
	assert.Contains(t, out, "send: nonce too low")
	assert.Contains(t, out, "…", "long claims are truncated")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := strings.Repeat("é", maxCell+5)
	assert.Equal(t, maxCell, len([]rune(truncate(long))))
}

func TestMetricsServer(t *testing.T) {
	led, err := ledger.Open(ledger.Config{MaxEntries: 10}, nil)
	require.NoError(t, err)
	defer led.Close()
	_, err = led.MarkSeen("1")
	require.NoError(t, err)

	contract, err := chain.LoadContract("0x5FbDB2315678afecb367f032d93F642f64180aa3", "")
	require.NoError(t, err)
	w, err := chain.NewWatcher(nopClient{}, contract, led, []chain.Account{{Model: "m"}}, chain.Options{}, nil)
	require.NoError(t, err)

	e := newMetricsServer(w, led)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle","seen_entries":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "factcheckd_ledger_seen_entries")
}
