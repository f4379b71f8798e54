package stdio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon serves /health and the check routes.
func fakeDaemon(t *testing.T, models []string, check func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Version: "1.2.3", Models: models})
	})
	if check == nil {
		check = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected check", http.StatusTeapot)
		}
	}
	mux.HandleFunc("POST /", check)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDaemonClient(t *testing.T) {
	client := NewDaemonClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	require.NotNil(t, client.httpClient)
}

func TestDaemonClient_Check(t *testing.T) {
	var paths []string
	srv := fakeDaemon(t, []string{"gemini-1.5-flash", "gemini-2.0-flash"}, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Vitamin C cures colds", body["message"])

		_, _ = w.Write([]byte(`{"classification":"FACT_CHECK","response":"raw","response_json":{"confirming":[],"refuting":["Cochrane 2013"],"response":"Not supported.","correctness_score":10}}`))
	})
	client := NewDaemonClient(srv.URL)

	res, err := client.Check(context.Background(), "Vitamin C cures colds", "")
	require.NoError(t, err)
	assert.Equal(t, "FACT_CHECK", string(res.Classification))
	require.NotNil(t, res.ResponseJSON)
	assert.Equal(t, []string{"Cochrane 2013"}, res.ResponseJSON.Refuting)
	require.NotNil(t, res.ResponseJSON.CorrectnessScore)
	assert.Equal(t, 10, *res.ResponseJSON.CorrectnessScore)

	_, err = client.Check(context.Background(), "Vitamin C cures colds", "gemini-2.0-flash")
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/api/routes/chat/1/"}, paths)
}

func TestDaemonClient_CheckUnknownModel(t *testing.T) {
	srv := fakeDaemon(t, []string{"gemini-1.5-flash"}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("check route must not be called")
	})

	_, err := NewDaemonClient(srv.URL).Check(context.Background(), "claim", "gpt-4")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.ErrorContains(t, err, "gemini-1.5-flash")
}

func TestDaemonClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "echo error message",
			status:  http.StatusInternalServerError,
			body:    `{"message":"malformed verdict: missing response"}`,
			wantErr: "daemon returned status 500: malformed verdict: missing response",
		},
		{
			name:    "plain body",
			status:  http.StatusBadGateway,
			body:    "upstream down\n",
			wantErr: "daemon returned status 502: upstream down",
		},
		{
			name:    "bad json",
			status:  http.StatusOK,
			body:    "{",
			wantErr: "decoding response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeDaemon(t, nil, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewDaemonClient(srv.URL).Check(context.Background(), "claim", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDaemonClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewDaemonClient(url).Health(context.Background())
	assert.ErrorContains(t, err, "sending request")
}
