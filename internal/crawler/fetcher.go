package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"presswatch/internal/config"
	"presswatch/pkg/utils"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d (%s)", ErrUnexpectedStatusCode, e.Code, e.URL)
}

// Unwrap lets errors.Is match ErrUnexpectedStatusCode.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatusCode
}

// Request describes one HTTP call made by an adapter.
type Request struct {
	Headers map[string]string
	Body    any
	Method  string
	URL     string
}

// Fetcher performs paced HTTP requests for one source.
// Each call is a single attempt; retrying is left to the caller (see Retry).
type Fetcher struct {
	client   *resty.Client
	http     *utils.HTTPHelper
	attempts *AttemptLog
	headers  map[string]string
}

// NewFetcher creates a fetcher with the default retry timeout and no pacing.
func NewFetcher() *Fetcher {
	policy := config.DefaultRetryPolicy()

	return NewFetcherWithConfig(&policy, "", 0, nil)
}

// NewFetcherWithConfig creates a fetcher whose requests time out after the
// policy timeout and are paced to ratePerSecond (unlimited when <= 0).
// headers are sent with every request.
func NewFetcherWithConfig(policy *config.RetryPolicy, userAgent string, ratePerSecond float64, headers map[string]string) *Fetcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}

	limiter := rate.NewLimiter(limit, 1)

	client := resty.New()
	client.SetTimeout(policy.GetTimeout())
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &Fetcher{
		client:   client,
		http:     utils.NewHTTPHelper(userAgent),
		attempts: NewAttemptLog(),
		headers:  headers,
	}
}

// Attempts returns the log of every request made by this fetcher.
func (f *Fetcher) Attempts() *AttemptLog {
	return f.attempts
}

// Get fetches url and returns the response body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

// Do executes req once and returns the body of a 2xx response.
func (f *Fetcher) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	headers := f.http.BuildHeaders(f.headers)
	for k, v := range req.Headers {
		headers.Set(k, v)
	}

	r := f.client.R().SetContext(ctx).SetHeaderMultiValues(headers)
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	duration := time.Since(start)

	if err != nil {
		err = fmt.Errorf("request %s %s failed: %w", method, req.URL, err)
		f.attempts.RecordAttempt(req.URL, false, err, 0, duration)

		return nil, err
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		err = &StatusError{URL: req.URL, Code: resp.StatusCode()}
		f.attempts.RecordAttempt(req.URL, false, err, resp.StatusCode(), duration)

		return nil, err
	}

	f.attempts.RecordAttempt(req.URL, true, nil, resp.StatusCode(), duration)

	return resp.Body(), nil
}

// IsRetryable reports whether a failed request is worth repeating.
// Transport errors and 408, 429, 500 and 502-504 responses are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var permanent *permanentError
	if errors.As(err, &permanent) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.Code)
	}

	return true
}

// isRetryableStatus returns true if the HTTP status code warrants a retry.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
