package wayback

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/cache"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/linkheader"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/metrics"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/ratelimit"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

const (
	defaultRetries = 6
	defaultBackoff = 2 * time.Second
	defaultTimeout = 60 * time.Second
	defaultRetryAfterOn429 = 60 * time.Second
	maxDrainBytes = 4096

	moduleVersion = "0.1.0"
	repositoryURL = "https://github.com/edgi-govdata-archiving/wayback-sub000"
)

// retryableStatuses is the normative set from §4.3: the later source
// revision, which treats 429 separately rather than folding it in here.
var retryableStatuses = map[int]bool{
	413: true, 421: true, 500: true, 502: true, 503: true, 504: true, 599: true,
}

// bucketConfig names a rate-limit bucket and the URL path prefix that
// selects it.
type bucketConfig struct {
	prefix string
	name   string
	rate   float64 // calls per second
}

// defaultBuckets mirrors §4.3's three named buckets, selected by
// longest-prefix match, with the catch-all "memento" bucket as fallback.
func defaultBuckets() []bucketConfig {
	return []bucketConfig{
		{prefix: "/web/timemap", name: "timemap", rate: 0.8 * (100.0 / 60.0)},
		{prefix: "/cdx", name: "cdx", rate: 0.8 * (60.0 / 60.0)},
		{prefix: "", name: "memento", rate: 0.8 * (600.0 / 60.0)},
	}
}

// sharedGate is the process-wide rate-limit gate used by sessions that
// don't supply their own, so that concurrent sessions throttle in
// aggregate per §9's "global mutable state" design note.
var sharedGate = ratelimit.New(0)
var sharedGateOnce sync.Once

func defaultGate() *ratelimit.Gate {
	sharedGateOnce.Do(func() {
		for _, b := range defaultBuckets() {
			sharedGate.SetBucketRate(b.name, b.rate)
		}
	})
	return sharedGate
}

// SessionConfig configures a Session. Zero values are replaced with the
// defaults from §4.3.
type SessionConfig struct {
	Retries   int
	Backoff   time.Duration
	Timeout   time.Duration
	UserAgent string

	// Gate is the rate limiter used for all buckets. If nil, the
	// process-wide shared gate is used (see §9).
	Gate *ratelimit.Gate
	// Buckets overrides the default path-prefix -> bucket-name mapping.
	Buckets []bucketConfig

	// Cache optionally memoizes CDX search page bodies.
	Cache cache.Cache

	Transport http.RoundTripper
}

// Session owns a connection pool, retry policy, default timeout, and
// per-endpoint rate-limit bucket selection. A session is open or closed;
// closed sessions reject all new requests.
type Session struct {
	http      *http.Client
	retries   int
	backoff   time.Duration
	timeout   time.Duration
	userAgent string
	gate      *ratelimit.Gate
	buckets   []bucketConfig
	cache     cache.Cache
	logger    zerolog.Logger

	closed atomic.Bool
}

// NewSession constructs an open Session from cfg.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fmt.Sprintf("wayback/%s (+%s)", moduleVersion, repositoryURL)
	}
	if cfg.Gate == nil {
		cfg.Gate = defaultGate()
	}
	if cfg.Buckets == nil {
		cfg.Buckets = defaultBuckets()
		for _, b := range cfg.Buckets {
			cfg.Gate.SetBucketRate(b.name, b.rate)
		}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NoOp()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Session{
		http: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		gate:      cfg.Gate,
		buckets:   cfg.Buckets,
		cache:     cfg.Cache,
		logger:    wblog.WithComponent("session"),
	}
}

// Close marks the session closed, closes the connection pool's idle
// connections, and releases its attached cache (the in-memory janitor
// goroutine, or the Redis/Badger connection, as applicable). Once
// closed, all future sends are rejected with ErrSessionClosed. Close is
// idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.http.CloseIdleConnections()
	return s.cache.Close()
}

func (s *Session) isClosed() bool {
	return s.closed.Load()
}

// bucketFor selects the rate-limit bucket name for a request path by
// longest matching configured prefix, falling back to the catch-all
// bucket (empty prefix) if nothing else matches.
func (s *Session) bucketFor(path string) string {
	best := ""
	bestLen := -1
	for _, b := range s.buckets {
		if b.prefix == "" {
			if bestLen < 0 {
				best = b.name
				bestLen = 0
			}
			continue
		}
		if strings.HasPrefix(path, b.prefix) && len(b.prefix) > bestLen {
			best = b.name
			bestLen = len(b.prefix)
		}
	}
	return best
}

// Response is the narrow internal response object the session returns:
// headers and the effective URL are available immediately; the body is
// a stream that must be drained or closed.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        *url.URL
	Links      []linkheader.Link

	body   io.ReadCloser
	raw    *http.Response
	cached []byte
	read   bool
	cancel context.CancelFunc
}

// Close releases the response's connection (and the per-attempt timeout
// context) if the body has not already been read or drained. Safe to
// call multiple times.
func (r *Response) Close() error {
	defer r.releaseCancel()
	if r.read {
		return nil
	}
	r.read = true
	return r.body.Close()
}

func (r *Response) releaseCancel() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// IsMemento reports whether the response carries a Memento-Datetime
// header, identifying it as a capture rather than a Wayback-internal
// error page or redirect stub.
func (r *Response) IsMemento() bool {
	return r.Header.Get("Memento-Datetime") != ""
}

// Content reads and caches the full response body, then releases the
// connection. Subsequent calls return the cached bytes.
func (r *Response) Content() ([]byte, error) {
	if r.read {
		return r.cached, nil
	}
	defer r.releaseCancel()
	data, err := io.ReadAll(r.body)
	closeErr := r.body.Close()
	r.read = true
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	r.cached = data
	return data, nil
}

// Drain performs a best-effort bounded read of the body followed by
// close, releasing the pooled connection without caching the content.
// Decode errors during drain fall back to draining the raw body.
func (r *Response) Drain() {
	if r.read {
		return
	}
	defer r.releaseCancel()
	_, err := io.CopyN(io.Discard, r.body, maxDrainBytes)
	if err != nil && r.raw != nil && r.raw.Body != nil {
		_, _ = io.CopyN(io.Discard, r.raw.Body, maxDrainBytes)
	}
	_ = r.body.Close()
	r.read = true
}

// operationKey classifies a request path for metrics/logging purposes.
func operationKey(path string) string {
	switch {
	case strings.HasPrefix(path, "/cdx"):
		return "cdx_search"
	case strings.HasPrefix(path, "/web/timemap"):
		return "timemap"
	default:
		return "memento"
	}
}

// send issues method/targetURL with redirects disabled and retries per
// §4.3's algorithm, returning the first non-retried response.
func (s *Session) send(ctx context.Context, method string, targetURL *url.URL, header http.Header) (*Response, error) {
	if s.isClosed() {
		return nil, &Error{Sentinel: ErrSessionClosed, Operation: method}
	}

	bucket := s.bucketFor(targetURL.Path)
	operation := operationKey(targetURL.Path)

	maxAttempts := s.retries + 1
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.gate.Wait(ctx, bucket); err != nil {
			return nil, err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if s.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}

		req, err := http.NewRequestWithContext(attemptCtx, method, targetURL.String(), nil)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, fmt.Errorf("wayback: building request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		attemptStart := time.Now()
		resp, err := s.http.Do(req)
		duration := time.Since(attemptStart)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		metrics.RequestDuration.WithLabelValues(operation, fmt.Sprint(status), fmt.Sprint(attempt)).Observe(duration.Seconds())

		if err != nil {
			if cancel != nil {
				cancel()
			}
			lastErr = err
			if attempt < maxAttempts && isRetriableTransportError(err) {
				metrics.Retries.WithLabelValues(operation).Inc()
				s.logger.Warn().Str("operation", operation).Int("attempt", attempt).Err(err).Msg("retrying after transport error")
				s.sleep(ctx, s.backoff*time.Duration(1<<uint(attempt-1)))
				continue
			}
			metrics.Failures.WithLabelValues(operation, "transport").Inc()
			s.logger.Error().Str("operation", operation).Int("attempts", attempt).Err(err).Msg("request failed")
			return nil, &Error{Sentinel: ErrRetryExhausted, Operation: operation, Err: lastErr, Retries: attempt - 1, Elapsed: time.Since(start)}
		}

		repairContentEncoding(resp.Header)
		isMemento := resp.Header.Get("Memento-Datetime") != ""

		if resp.StatusCode == http.StatusTooManyRequests && !isMemento {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if retryAfter == 0 {
				retryAfter = defaultRetryAfterOn429
			}
			drainAndClose(resp)
			if cancel != nil {
				cancel()
			}
			metrics.Failures.WithLabelValues(operation, "rate_limit").Inc()
			s.logger.Error().Str("operation", operation).Dur("retry_after", retryAfter).Msg("rate limited")
			return nil, &Error{Sentinel: ErrRateLimit, Operation: operation, Status: resp.StatusCode, RetryAfter: retryAfter}
		}

		retriable := !isMemento && retryableStatuses[resp.StatusCode]
		if retriable && attempt < maxAttempts {
			delay := s.backoff * time.Duration(1<<uint(attempt-1))
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if d := parseRetryAfter(ra); d > 0 {
					delay = d
				}
			}
			drainAndClose(resp)
			if cancel != nil {
				cancel()
			}
			metrics.Retries.WithLabelValues(operation).Inc()
			s.logger.Warn().Str("operation", operation).Int("attempt", attempt).Int("status", resp.StatusCode).Dur("delay", delay).Msg("retrying after retryable status")
			s.sleep(ctx, delay)
			continue
		}

		response, err := s.wrapResponse(resp, req.URL)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, err
		}
		response.cancel = cancel
		s.logger.Info().Str("operation", operation).Int("attempt", attempt).Int("status", response.StatusCode).Dur("duration", duration).Msg("request succeeded")
		return response, nil
	}

	metrics.Failures.WithLabelValues(operation, "retry_exhausted").Inc()
	s.logger.Error().Str("operation", operation).Int("attempts", maxAttempts).Msg("retries exhausted")
	return nil, &Error{Sentinel: ErrRetryExhausted, Operation: operation, Err: lastErr, Retries: maxAttempts - 1, Elapsed: time.Since(start)}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()
}

// wrapResponse builds the narrow internal Response, applying
// decompression for whatever Content-Encoding survived the repair step
// above (our own Accept-Encoding negotiation disables Go's built-in
// transparent gzip handling, so we must do this ourselves).
func (s *Session) wrapResponse(resp *http.Response, effectiveURL *url.URL) (*Response, error) {
	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("wayback: decoding response body: %w", err)
	}

	links := linkheader.Parse(resp.Header.Get("Link"))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        effectiveURL,
		Links:      links,
		body:       body,
		raw:        resp,
	}, nil
}

// decodeBody wraps body in a decompressing reader per contentEncoding.
// Unsupported encodings are passed through unchanged.
func decodeBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &multiCloser{Reader: gz, closers: []io.Closer{gz, body}}, nil
	case "deflate":
		fr := flate.NewReader(body)
		return &multiCloser{Reader: fr, closers: []io.Closer{fr, body}}, nil
	default:
		return body, nil
	}
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var firstErr error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// repairContentEncoding fixes the documented server defect: some archived
// responses carry both an empty Content-Encoding header and a
// Content-Encoding: gzip header, which suppresses automatic
// decompression in HTTP clients that check for a single non-empty value.
// This must run before body decoding.
func repairContentEncoding(header http.Header) {
	values := header.Values("Content-Encoding")
	if len(values) < 2 {
		return
	}
	hasEmpty := false
	hasGzip := false
	for _, v := range values {
		if v == "" {
			hasEmpty = true
		}
		if strings.EqualFold(v, "gzip") {
			hasGzip = true
		}
	}
	if hasEmpty && hasGzip {
		header.Set("Content-Encoding", "gzip")
	}
}

// parseRetryAfter parses a Retry-After header in either integer-seconds
// or HTTP-date form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// isRetriableTransportError classifies a low-level transport error
// (connect timeout, read timeout, connection reset, etc.) as retriable.
// net/http does not expose a closed taxonomy the way some HTTP clients
// do, so this treats any error from Do other than a canceled context as
// retriable, matching the "closed retriable-error set" described in
// §4.3 (connect-timeout, read-timeout, proxy error, generic I/O error).
// A per-attempt timeout surfaces as context.DeadlineExceeded and is
// retried like any other timeout.
func isRetriableTransportError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// buildURL appends query parameters to base, expanding repeated keys for
// slice values in input order, as described in §4.3 step 4.
func buildURL(base string, query []queryParam) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	for _, p := range query {
		values.Add(p.Key, p.Value)
	}
	existing := u.Query()
	for k, vs := range existing {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	u.RawQuery = encodeOrdered(query, existing)
	return u, nil
}

// queryParam is one ordered key/value query parameter.
type queryParam struct {
	Key   string
	Value string
}

// encodeOrdered renders query params preserving input order (url.Values
// is a map and does not), which matters for resumeKey-based pagination
// readability and test fixtures that assert on literal query strings.
func encodeOrdered(query []queryParam, extra url.Values) string {
	var buf bytes.Buffer
	first := true
	write := func(k, v string) {
		if !first {
			buf.WriteByte('&')
		}
		first = false
		buf.WriteString(url.QueryEscape(k))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(v))
	}
	for _, p := range query {
		write(p.Key, p.Value)
	}
	for k, vs := range extra {
		for _, v := range vs {
			write(k, v)
		}
	}
	return buf.String()
}
