package crawler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"presswatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "presswatch-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Source"))
		_, _ = io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	policy := config.DefaultRetryPolicy()
	f := NewFetcherWithConfig(&policy, "presswatch-test", 0, map[string]string{"X-Source": "yes"})

	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))

	stats := f.Attempts().GetAttemptStats()
	assert.Equal(t, 1, stats.SuccessfulAttempts)
	assert.Equal(t, 1, stats.SuccessfulURLs)
}

func TestFetcher_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["page"])

		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	body, err := NewFetcher().Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   map[string]any{"page": 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher()

	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatusCode)
	assert.True(t, IsRetryable(err))

	log := f.Attempts().GetAttemptLog(srv.URL)
	require.Len(t, log, 1)
	assert.Equal(t, http.StatusServiceUnavailable, log[0].StatusCode)
	assert.False(t, log[0].Success)
}

func TestFetcher_RetryAroundFetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		_, _ = io.WriteString(w, "done")
	}))
	defer srv.Close()

	f := NewFetcher()
	policy := config.RetryPolicy{MaxAttempts: 3, BackoffMultiplier: 1, TimeoutSec: 5}

	var body []byte

	err := Retry(context.Background(), &policy, func(int) error {
		var err error
		body, err = f.Get(context.Background(), srv.URL)

		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
	assert.Equal(t, 3, f.Attempts().GetAttemptStats().TotalAttempts)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(io.ErrUnexpectedEOF))
	assert.True(t, IsRetryable(&StatusError{Code: http.StatusGatewayTimeout}))
	assert.False(t, IsRetryable(&StatusError{Code: http.StatusForbidden}))
}
