package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnknownModel is returned when the daemon does not serve a model.
var ErrUnknownModel = errors.New("model not served by daemon")

// DaemonClient talks to the factcheckd HTTP daemon.
type DaemonClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDaemonClient creates a client for the daemon at baseURL
// (e.g. "http://localhost:8080").
func NewDaemonClient(baseURL string) *DaemonClient {
	return &DaemonClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Fact-checks make several model calls.
			Timeout: 2 * time.Minute,
		},
	}
}

// Check fact-checks message. An empty model uses the daemon's default
// route; otherwise the model's index route is resolved through /health.
func (c *DaemonClient) Check(ctx context.Context, message, model string) (*CheckResult, error) {
	path := "/"
	if model != "" {
		h, err := c.Health(ctx)
		if err != nil {
			return nil, err
		}
		i := slices.Index(h.Models, model)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q (serving %s)", ErrUnknownModel, model, strings.Join(h.Models, ", "))
		}
		path = fmt.Sprintf("/api/routes/chat/%d/", i)
	}

	var res CheckResult
	if err := c.Post(ctx, path, map[string]string{"message": message}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health returns the daemon's health payload.
func (c *DaemonClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.Get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Post sends a JSON-encoded request to path and decodes the response
// into result.
func (c *DaemonClient) Post(ctx context.Context, path string, request interface{}, result interface{}) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(request); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

// Get decodes the response of path into result.
func (c *DaemonClient) Get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *DaemonClient) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		// echo errors carry {"message": "..."}.
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, msg)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
