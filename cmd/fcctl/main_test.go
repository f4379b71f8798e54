package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/factcheckd/internal/router"
	"github.com/fyrsmithlabs/factcheckd/internal/verdict"
	"github.com/fyrsmithlabs/factcheckd/pkg/mcp/stdio"
)

func intPtr(i int) *int { return &i }

func TestReadClaim(t *testing.T) {
	claim, err := readClaim([]string{"Coffee stunts growth"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "Coffee stunts growth", claim)

	claim, err = readClaim([]string{"-"}, strings.NewReader("  from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", claim)

	_, err = readClaim(nil, strings.NewReader("   "))
	assert.EqualError(t, err, "no claim to check")
}

func TestRenderResult(t *testing.T) {
	out := renderResult(&stdio.CheckResult{
		Classification: router.FactCheck,
		ResponseJSON: &verdict.Verdict{
			Confirming:       []string{"Cochrane review"},
			Response:         "Supported.",
			CorrectnessScore: intPtr(90),
		},
	})
	assert.Contains(t, out, "FACT_CHECK")
	assert.Contains(t, out, "90/100")
	assert.Contains(t, out, "Cochrane review")
	assert.NotContains(t, out, "Refuting")

	out = renderResult(&stdio.CheckResult{Classification: router.NotRelevant, Response: "N/A"})
	assert.Contains(t, out, "NOT_RELEVANT")
	assert.Contains(t, out, "N/A")
}

func TestScoreStyle(t *testing.T) {
	assert.Equal(t, badStyle.GetForeground(), scoreStyle(10).GetForeground())
	assert.Equal(t, warnStyle.GetForeground(), scoreStyle(50).GetForeground())
	assert.Equal(t, goodStyle.GetForeground(), scoreStyle(67).GetForeground())
}

func daemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","version":"0.3.0","models":["gemini-1.5-flash"]}`))
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"classification":"NOT_RELEVANT","response":"N/A"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunCheck_JSON(t *testing.T) {
	srv := daemon(t)
	serverURL, checkJSON, checkModel = srv.URL, true, ""
	t.Cleanup(func() { checkJSON = false })

	var out bytes.Buffer
	checkCmd.SetOut(&out)
	checkCmd.SetContext(context.Background())
	require.NoError(t, runCheck(checkCmd, []string{"What is the capital of France?"}))

	var res stdio.CheckResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, router.NotRelevant, res.Classification)
}

func TestRunHealth(t *testing.T) {
	srv := daemon(t)
	serverURL = srv.URL

	var out bytes.Buffer
	healthCmd.SetOut(&out)
	healthCmd.SetContext(context.Background())
	require.NoError(t, runHealth(healthCmd, nil))

	assert.Contains(t, out.String(), "ok")
	assert.Contains(t, out.String(), "0.3.0")
	assert.Contains(t, out.String(), "gemini-1.5-flash")
}

func TestRunHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	serverURL = srv.URL
	srv.Close()

	healthCmd.SetContext(context.Background())
	err := runHealth(healthCmd, nil)
	assert.ErrorContains(t, err, "failed to reach")
}
