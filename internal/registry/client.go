package registry

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

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/releaseplan/internal/metrics"
)

const (
	DefaultBaseURL   = "https://crates.io"
	DefaultUserAgent = "releaseplan (+https://github.com/anvil-platform/releaseplan)"
	DefaultTimeout   = 10 * time.Second
	defaultCacheSize = 1024

	maxResponseBytes = 32 << 20
)

// VersionOracle lists the published versions of a package.
type VersionOracle interface {
	ListPublishedVersions(ctx context.Context, name string) Result
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds each request. A timeout yields StateUnknown.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests; <= 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
	CacheSize         int
	HTTPClient        *http.Client
}

// Client queries a crates.io compatible registry API:
//
//	GET {BaseURL}/api/v1/crates/{name}
//
// Package names are matched case-insensitively. Confirmed and NotFound
// answers are cached for the lifetime of the Client, which is one run.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	cache     *lru.Cache[string, Result]
}

var _ VersionOracle = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("registry base url %q: %w", base, err)
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, fmt.Errorf("registry cache: %w", err)
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:   base,
		userAgent: ua,
		timeout:   timeout,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		cache:     cache,
	}, nil
}

// ListPublishedVersions returns the registry's view of name. Every call
// returns its own copy of the version list.
func (c *Client) ListPublishedVersions(ctx context.Context, name string) Result {
	key := normalizeName(name)
	logger := log.FromContext(ctx).WithValues("package", key)

	if cached, ok := c.cache.Get(key); ok {
		metrics.RegistryCacheHitsTotal.Inc()
		return cached.clone()
	}

	start := time.Now()
	versions, err := c.fetch(ctx, key)
	metrics.RegistryQueryDuration.Observe(time.Since(start).Seconds())

	var res Result
	switch {
	case err == nil:
		res = Confirmed(versions)
		logger.V(1).Info("registry versions confirmed", "count", len(res.Versions), "latest", res.Latest())
	case errors.Is(err, ErrNotFound):
		res = NotFound()
		logger.V(1).Info("package never published")
	default:
		logger.Error(err, "registry query failed; published versions unknown")
		metrics.RegistryQueriesTotal.WithLabelValues(StateUnknown.String()).Inc()
		return Unknown(err)
	}

	metrics.RegistryQueriesTotal.WithLabelValues(res.State.String()).Inc()
	c.cache.Add(key, res)
	return res.clone()
}

type crateResponse struct {
	Versions []struct {
		Num    string `json:"num"`
		Yanked bool   `json:"yanked"`
	} `json:"versions"`
}

// fetch returns the published version numbers, ErrNotFound on a 404, or a
// *TransportError. Yanked versions still count as published.
func (c *Client) fetch(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, &TransportError{Package: name, Err: errors.New("empty package name")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Package: name, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	endpoint := c.baseURL + "/api/v1/crates/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Package: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Package: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			Package:    name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	var decoded crateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, &TransportError{Package: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if decoded.Versions == nil {
		return nil, &TransportError{Package: name, StatusCode: resp.StatusCode, Err: errors.New("response has no versions field")}
	}

	versions := make([]string, 0, len(decoded.Versions))
	for _, v := range decoded.Versions {
		if num := strings.TrimSpace(v.Num); num != "" {
			versions = append(versions, num)
		}
	}
	return versions, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
