package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradesxbt/logger"
)

// quotaHeaders are checked in order for the calls left in the current window.
var quotaHeaders = []string{
	"X-RateLimit-Remaining",
	"X-RateLimit-Requests-Remaining",
	"X-Ratelimit-Remaining-Minute",
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func quotaRemaining(h http.Header) (int64, bool) {
	for _, key := range quotaHeaders {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// reportRateLimited counts a 429 from provider and logs the advertised wait.
func reportRateLimited(log *logger.Log, provider, endpoint string, h http.Header, wait time.Duration) {
	component := "httpx_" + strings.ToLower(provider)
	fields := logger.Fields{
		"provider": strings.ToLower(provider),
		"endpoint": endpoint,
	}
	log.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)

	entry := log.WithComponent(component).WithFields(fields)
	if wait > 0 {
		entry = entry.WithField("retry_after", wait.String())
	}
	if left, ok := quotaRemaining(h); ok {
		entry = entry.WithField("quota_remaining", left)
	}
	entry.Warn("rate limit exceeded")
}
