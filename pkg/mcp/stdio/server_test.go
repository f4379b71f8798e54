package stdio

import (
	"context"
	"net/http"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/factcheckd/internal/router"
	"github.com/fyrsmithlabs/factcheckd/internal/verdict"
)

func TestNewServer(t *testing.T) {
	server, err := NewServer("http://localhost:8080", "")
	require.NoError(t, err)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.client)

	_, err = NewServer("", "1.0.0")
	assert.EqualError(t, err, "daemonURL cannot be empty")
}

func resultText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "content is not text")
	return text.Text
}

func TestHandleCheckClaim(t *testing.T) {
	srv := fakeDaemon(t, []string{"gemini-1.5-flash"}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"classification":"FACT_CHECK","response":"raw","response_json":{"confirming":["WHO fact sheet"],"refuting":[],"response":"Supported by evidence.","correctness_score":85}}`))
	})
	server, err := NewServer(srv.URL, "test")
	require.NoError(t, err)

	res, _, err := server.handleCheckClaim(context.Background(), &mcpsdk.CallToolRequest{}, &CheckClaimParams{
		Message: "Smoking causes lung cancer",
		Model:   "gemini-1.5-flash",
	})
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "Classification: FACT_CHECK")
	assert.Contains(t, text, "Correctness score: 85/100")
	assert.Contains(t, text, "  - WHO fact sheet")
	assert.NotContains(t, text, "Refuting sources")
	assert.Contains(t, text, "Supported by evidence.")
}

func TestHandleCheckClaim_Errors(t *testing.T) {
	srv := fakeDaemon(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"vector store unavailable"}`))
	})
	server, err := NewServer(srv.URL, "test")
	require.NoError(t, err)

	_, _, err = server.handleCheckClaim(context.Background(), &mcpsdk.CallToolRequest{}, &CheckClaimParams{Message: "  "})
	assert.EqualError(t, err, "message is required")

	_, _, err = server.handleCheckClaim(context.Background(), &mcpsdk.CallToolRequest{}, &CheckClaimParams{Message: "claim"})
	assert.ErrorContains(t, err, "vector store unavailable")
}

func TestHandleStatus(t *testing.T) {
	srv := fakeDaemon(t, []string{"gemini-1.5-flash", "gemini-2.0-flash"}, nil)
	server, err := NewServer(srv.URL, "test")
	require.NoError(t, err)

	res, _, err := server.handleStatus(context.Background(), &mcpsdk.CallToolRequest{}, &StatusParams{})
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "daemon is ok")
	assert.Contains(t, text, "Version: 1.2.3")
	assert.Contains(t, text, "gemini-1.5-flash, gemini-2.0-flash")
}

func TestFormatResult(t *testing.T) {
	t.Run("not relevant", func(t *testing.T) {
		text := FormatResult(&CheckResult{Classification: router.NotRelevant, Response: "N/A"})
		assert.Equal(t, "Classification: NOT_RELEVANT\n\nN/A", text)
	})

	t.Run("no score", func(t *testing.T) {
		text := FormatResult(&CheckResult{
			Classification: router.FactCheck,
			ResponseJSON: &verdict.Verdict{
				Refuting: []string{"NEJM 2019"},
				Response: "Evidence is mixed.",
			},
		})
		assert.Contains(t, text, "unable to assess")
		assert.Contains(t, text, "Refuting sources:\n  - NEJM 2019\n")
	})
}
