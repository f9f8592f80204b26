package crawler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"presswatch/internal/logger"
)

// AttemptResult records the result of a URL fetch attempt.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Attempt    int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// AttemptLog keeps every fetch attempt per URL. It is safe for concurrent use.
type AttemptLog struct {
	entries map[string][]AttemptResult
	mu      sync.Mutex
}

// NewAttemptLog creates an empty attempt log.
func NewAttemptLog() *AttemptLog {
	return &AttemptLog{entries: make(map[string][]AttemptResult)}
}

// RecordAttempt records the result of a fetch attempt.
func (al *AttemptLog) RecordAttempt(url string, success bool, err error, statusCode int, duration time.Duration) {
	al.mu.Lock()
	defer al.mu.Unlock()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	al.entries[url] = append(al.entries[url], AttemptResult{
		URL:        url,
		Attempt:    len(al.entries[url]) + 1,
		Success:    success,
		Error:      errMsg,
		Timestamp:  time.Now(),
		Duration:   duration,
		StatusCode: statusCode,
	})
}

// GetAttemptLog returns the attempt log for a URL.
func (al *AttemptLog) GetAttemptLog(url string) []AttemptResult {
	al.mu.Lock()
	defer al.mu.Unlock()

	return append([]AttemptResult(nil), al.entries[url]...)
}

// GetAttemptStats returns statistics about fetch attempts.
func (al *AttemptLog) GetAttemptStats() AttemptStats {
	al.mu.Lock()
	defer al.mu.Unlock()

	stats := AttemptStats{
		TotalURLs:   len(al.entries),
		URLAttempts: make(map[string]int),
	}

	for url, results := range al.entries {
		stats.URLAttempts[url] = len(results)
		stats.TotalAttempts += len(results)

		urlSuccess := false

		for _, result := range results {
			if result.Success {
				stats.SuccessfulAttempts++
				urlSuccess = true
			} else {
				stats.FailedAttempts++
			}

			stats.TotalDuration += result.Duration
		}

		if urlSuccess {
			stats.SuccessfulURLs++
		} else {
			stats.FailedURLs++
		}
	}

	return stats
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	URLAttempts        map[string]int
	TotalURLs          int
	SuccessfulURLs     int
	FailedURLs         int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
	TotalDuration      time.Duration
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"URLs: %d total, %d success, %d failed | Attempts: %d total, %d success, %d failed",
		s.TotalURLs,
		s.SuccessfulURLs,
		s.FailedURLs,
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
	)
}

// LogAttemptSummary logs every URL that never succeeded, then the overall stats.
func (al *AttemptLog) LogAttemptSummary(l *logger.Logger) {
	stats := al.GetAttemptStats()

	urls := make([]string, 0, len(stats.URLAttempts))
	for url := range stats.URLAttempts {
		urls = append(urls, url)
	}

	sort.Strings(urls)

	for _, url := range urls {
		results := al.GetAttemptLog(url)
		last := results[len(results)-1]

		if !last.Success {
			l.Warn("fetch failed", "url", url, "attempts", len(results), "status", last.StatusCode, "error", last.Error)
		}
	}

	l.Debug("fetch attempt summary", "stats", stats.String(), "duration", stats.TotalDuration)
}

