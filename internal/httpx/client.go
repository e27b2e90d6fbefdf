// Package httpx is the shared HTTP client for upstream data providers:
// per-attempt timeout, bounded retries with exponential backoff, optional
// rate-limit queue and one warn line per failed attempt.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/internal/metrics"
	"tradesxbt/logger"
)

// DefaultRetryStatuses are retried on top of network errors and any 5xx.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	Retries       int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	Headers       map[string]string
	RetryStatuses []int
	Queue         *Queue
	HTTPClient    *http.Client
}

type Client struct {
	name          string
	opts          Options
	http          *http.Client
	retryStatuses map[int]struct{}
	log           *logger.Log
}

func New(name string, opts Options, log *logger.Log) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	statuses := opts.RetryStatuses
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return &Client{
		name:          name,
		opts:          opts,
		http:          hc,
		retryStatuses: set,
		log:           log,
	}
}

// FromConfig builds a client from a provider section; extraStatuses are
// retried in addition to DefaultRetryStatuses.
func FromConfig(name string, cfg config.HTTPProviderConfig, headers map[string]string, extraStatuses []int, log *logger.Log) *Client {
	opts := Options{
		BaseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:       cfg.Timeout,
		Retries:       cfg.Retries,
		BackoffMin:    cfg.BackoffMin,
		BackoffMax:    cfg.BackoffMax,
		Headers:       headers,
		RetryStatuses: append(append([]int{}, DefaultRetryStatuses...), extraStatuses...),
	}
	if cfg.Queue.Enabled {
		opts.Queue = NewQueue(cfg.Queue.Concurrency, cfg.Queue.Interval, cfg.Queue.Cap)
	}
	return New(name, opts, log)
}

func (c *Client) Name() string {
	return c.name
}

// GetJSON fetches endpoint with params and decodes the body into out. The
// returned error is an *apperr.Error unless ctx was cancelled.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	call := func(ctx context.Context) error {
		return c.getWithRetry(ctx, endpoint, params, out)
	}
	if c.opts.Queue != nil {
		return c.opts.Queue.Do(ctx, call)
	}
	return call(ctx)
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	b := &backoff.Backoff{
		Min:    c.opts.BackoffMin,
		Max:    c.opts.BackoffMax,
		Factor: 2,
	}
	attempts := c.opts.Retries + 1
	log := c.log.WithComponent("httpx").WithFields(logger.Fields{
		"provider": c.name,
		"endpoint": endpoint,
	})

	start := time.Now()
	var lastErr error
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		err := c.do(ctx, endpoint, params, out)
		metrics.ObserveHTTPAttempt(c.name, err == nil)
		if err == nil {
			logger.LogPerformanceEntry(log, "httpx", "get", time.Since(start), logger.Fields{"attempts": attempt})
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		log.WithError(err).WithFields(logger.Fields{
			"attempt":      attempt,
			"retries_left": attempts - attempt,
		}).Warn("request attempt failed")

		if attempt == attempts || !c.retryable(err) {
			break
		}

		timer := time.NewTimer(c.wait(b, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var ae *apperr.Error
	if errors.As(lastErr, &ae) {
		ae.Attempts = attempt
	}
	return lastErr
}

// wait is the next backoff step, stretched to an upstream Retry-After but
// never past BackoffMax.
func (c *Client) wait(b *backoff.Backoff, err error) time.Duration {
	d := b.Duration()
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.RetryAfter > d {
		d = ae.RetryAfter
		if c.opts.BackoffMax > 0 && d > c.opts.BackoffMax {
			d = c.opts.BackoffMax
		}
	}
	return d
}

func (c *Client) retryable(err error) bool {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return false
	}
	if ae.Kind == apperr.KindNetwork {
		return true
	}
	if ae.Status == 0 {
		return false
	}
	if _, ok := c.retryStatuses[ae.Status]; ok {
		return true
	}
	// every call here is an idempotent GET
	return ae.Status >= 500
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	op := c.name + " " + endpoint

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	target := c.opts.BaseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return apperr.New(apperr.KindClient, op, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.opts.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.New(apperr.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		ae := &apperr.Error{
			Kind:   apperr.KindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s: %s", http.StatusText(resp.StatusCode), strings.TrimSpace(string(snippet))),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			ae.RetryAfter = retryAfter(resp.Header, time.Now())
			reportRateLimited(c.log, c.name, endpoint, resp.Header, ae.RetryAfter)
		}
		return ae
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if reqCtx.Err() != nil {
			return apperr.New(apperr.KindNetwork, op, err)
		}
		return apperr.New(apperr.KindValidation, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
