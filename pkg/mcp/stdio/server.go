// Package stdio exposes the fact-checker as an MCP server over stdin/stdout.
//
// Tool calls are delegated to a running factcheckd HTTP daemon:
//
//	MCP client → stdio (this server) → HTTP → factcheckd → pipeline
package stdio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/factcheckd/internal/router"
)

// Server implements the MCP stdio transport.
type Server struct {
	mcpServer *mcpsdk.Server
	client    *DaemonClient
}

// NewServer creates a stdio MCP server delegating to daemonURL.
func NewServer(daemonURL, version string) (*Server, error) {
	if daemonURL == "" {
		return nil, errors.New("daemonURL cannot be empty")
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcpServer: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "factcheckd",
			Version: version,
		}, nil),
		client: NewDaemonClient(daemonURL),
	}
	s.registerTools()
	return s, nil
}

// Run serves until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "check_claim",
		Description: "Fact-check a biomedical claim against the reference corpus. Returns the classification, a verdict with confirming and refuting sources, and a correctness score from 0 to 100.",
	}, s.handleCheckClaim)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "status",
		Description: "Get fact-checker daemon health, version and served models.",
	}, s.handleStatus)
}

// handleCheckClaim delegates to POST / or the model's index route.
func (s *Server) handleCheckClaim(ctx context.Context, req *mcpsdk.CallToolRequest, params *CheckClaimParams) (*mcpsdk.CallToolResult, any, error) {
	if strings.TrimSpace(params.Message) == "" {
		return nil, nil, errors.New("message is required")
	}
	res, err := s.client.Check(ctx, params.Message, params.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("check failed: %w", err)
	}
	return textResult(FormatResult(res)), nil, nil
}

// handleStatus delegates to GET /health.
func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, params *StatusParams) (*mcpsdk.CallToolResult, any, error) {
	h, err := s.client.Health(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("status check failed: %w", err)
	}
	text := fmt.Sprintf("factcheckd daemon is %s\n\nVersion: %s\nModels: %s", h.Status, h.Version, strings.Join(h.Models, ", "))
	if h.VectorStore != "" {
		text += "\nVector store: " + h.VectorStore
	}
	return textResult(text), nil, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// FormatResult renders a check result as plain text.
func FormatResult(res *CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classification: %s\n", res.Classification)

	v := res.ResponseJSON
	if res.Classification != router.FactCheck || v == nil {
		fmt.Fprintf(&b, "\n%s", res.Response)
		return b.String()
	}

	if v.CorrectnessScore != nil {
		fmt.Fprintf(&b, "Correctness score: %d/100\n", *v.CorrectnessScore)
	} else {
		b.WriteString("Correctness score: unable to assess\n")
	}
	writeSources(&b, "Confirming sources", v.Confirming)
	writeSources(&b, "Refuting sources", v.Refuting)
	fmt.Fprintf(&b, "\n%s", v.Response)
	return b.String()
}

func writeSources(b *strings.Builder, title string, sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, s := range sources {
		fmt.Fprintf(b, "  - %s\n", s)
	}
}
