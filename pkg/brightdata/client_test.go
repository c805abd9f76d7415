package brightdata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlock(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  string
		wantCode int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   "<html>Acme Ltd company page</html>",
		},
		{
			name:     "rate_limit",
			status:   http.StatusTooManyRequests,
			body:     `{"error": "rate limit exceeded"}`,
			wantErr:  "unexpected status 429",
			wantCode: 429,
		},
		{
			name:     "server_error",
			status:   http.StatusInternalServerError,
			body:     `{"error": "internal server error"}`,
			wantErr:  "unexpected status 500",
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/request", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				reqBody, _ := io.ReadAll(r.Body)
				var req UnlockRequest
				require.NoError(t, json.Unmarshal(reqBody, &req))
				assert.Equal(t, "zone_profile", req.Zone)
				assert.Equal(t, "raw", req.Format)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-token", WithBaseURL(srv.URL))

			resp, err := client.Unlock(context.Background(), UnlockRequest{
				Zone: "zone_profile",
				URL:  "https://www.linkedin.com/company/acme-ltd",
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)

				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.wantCode, se.StatusCode)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.body, resp.Body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestUnlock_ZoneRequired(t *testing.T) {
	client := NewClient("test-token")
	_, err := client.Unlock(context.Background(), UnlockRequest{URL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone is required")
}

func TestUnlock_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Unlock(ctx, UnlockRequest{Zone: "z", URL: "https://example.com"})
	require.Error(t, err)
}

func TestSearch_BuildsQueryURL(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, _ := io.ReadAll(r.Body)
		var req UnlockRequest
		require.NoError(t, json.Unmarshal(reqBody, &req))
		gotURL = req.URL
		_, _ = w.Write([]byte("results"))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))

	resp, err := client.Search(context.Background(), "zone_news", `"Acme Ltd" layoffs`)
	require.NoError(t, err)
	assert.Equal(t, "results", resp.Body)
	assert.Contains(t, gotURL, "https://www.google.com/search?q=")
	assert.Contains(t, gotURL, "Acme")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Len(t, truncate(string(make([]byte, 1000)), 512), 512)
}
