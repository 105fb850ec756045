// Package neighbor queries other federation sites over HTTP.
//
// Two questions are asked of a site: which URLs it knows for a location
// identifier, and which sites it lists as neighbours in its sitemap. Every
// failure is reported as a sentinel error so discovery can skip the site and
// continue its walk.
package neighbor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"emojifed/internal/federation/address"
	"emojifed/pkg/platform/circuit"
	"emojifed/pkg/platform/sentinel"
	pstrings "emojifed/pkg/platform/strings"
	"emojifed/pkg/requestcontext"
)

const (
	// LocationPath is the mapping endpoint every federation site serves.
	LocationPath = "/plugin/allyabase/federation/location/"
	// SitemapPath lists the pages, and thereby the neighbours, of a site.
	SitemapPath = "/system/sitemap.json"

	DefaultTimeout         = 3 * time.Second
	DefaultNeighborhoodTTL = 5 * time.Minute

	maxBodyBytes = 1 << 20
)

// Client is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	timeout         time.Duration
	neighborhoodTTL time.Duration
	breakerOpts     []circuit.Option

	breakers      *cache.Cache
	neighborhoods *cache.Cache

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds each individual query.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithNeighborhoodTTL sets how long sitemap answers are reused. Zero disables
// the cache.
func WithNeighborhoodTTL(d time.Duration) Option {
	return func(cl *Client) {
		if d >= 0 {
			cl.neighborhoodTTL = d
		}
	}
}

// WithBreakerOptions configures the per-site circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(cl *Client) {
		cl.breakerOpts = append(cl.breakerOpts, opts...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		if t != nil {
			cl.tracer = t
		}
	}
}

// New creates a neighbour client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{},
		timeout:         DefaultTimeout,
		neighborhoodTTL: DefaultNeighborhoodTTL,
		logger:          slog.Default(),
		tracer:          otel.Tracer("emojifed/federation/neighbor"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	// Breakers for sites not contacted in an hour are dropped.
	c.breakers = cache.New(time.Hour, 10*time.Minute)
	c.neighborhoods = cache.New(c.neighborhoodTTL, time.Minute)
	return c
}

type mappingResponse struct {
	URL  json.RawMessage `json:"url"`
	URLs []string        `json:"urls"`
}

// QueryMapping asks site which URLs it has for loc. It returns
// sentinel.ErrNotFound when the site answered without a usable mapping and
// sentinel.ErrUnavailable when the site could not be reached.
func (c *Client) QueryMapping(ctx context.Context, site string, loc address.Location) (urls []string, err error) {
	site = normalizeSite(site)
	ctx, span := c.tracer.Start(ctx, "neighbor.QueryMapping", trace.WithAttributes(
		attribute.String("federation.site", site),
		attribute.String("federation.location", loc.String()),
	))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() { c.metrics.ObserveQuery("mapping", outcome(err), start) }()

	endpoint := site + LocationPath + url.PathEscape(loc.String())
	body, err := c.get(ctx, site, endpoint)
	if err != nil {
		return nil, err
	}

	var resp mappingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode mapping from %s: %w", site, sentinel.ErrNotFound)
	}

	urls = validURLs(append(decodeURLField(resp.URL), resp.URLs...))
	if len(urls) == 0 {
		return nil, fmt.Errorf("no mapping at %s: %w", site, sentinel.ErrNotFound)
	}
	span.SetAttributes(attribute.Int("federation.url_count", len(urls)))
	return urls, nil
}

type sitemapEntry struct {
	Slug string `json:"slug"`
}

// QueryNeighborhood returns the sites listed in site's sitemap, in order of
// first appearance. An unparseable sitemap yields an empty neighbourhood.
func (c *Client) QueryNeighborhood(ctx context.Context, site string) (neighbors []string, err error) {
	site = normalizeSite(site)
	ctx, span := c.tracer.Start(ctx, "neighbor.QueryNeighborhood", trace.WithAttributes(
		attribute.String("federation.site", site),
	))
	defer func() { endSpan(span, err) }()

	if cached, ok := c.neighborhoods.Get(site); ok {
		c.metrics.IncNeighborhoodCacheHit()
		span.SetAttributes(attribute.Bool("federation.cached", true))
		return slices.Clone(cached.([]string)), nil
	}

	start := time.Now()
	defer func() { c.metrics.ObserveQuery("neighborhood", outcome(err), start) }()

	body, err := c.get(ctx, site, site+SitemapPath)
	if err != nil {
		return nil, err
	}

	neighbors = ParseSitemap(body)
	if c.neighborhoodTTL > 0 {
		c.neighborhoods.Set(site, neighbors, c.neighborhoodTTL)
	}
	span.SetAttributes(attribute.Int("federation.neighbor_count", len(neighbors)))
	return neighbors, nil
}

// ParseSitemap extracts neighbour sites from a sitemap document. Each slug of
// the form "host.tld/page" contributes "http://host.tld".
func ParseSitemap(body []byte) []string {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return []string{}
	}

	sites := make([]string, 0, len(raw))
	for _, item := range raw {
		var entry sitemapEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		if !strings.Contains(entry.Slug, ".") {
			continue
		}
		domain, _, _ := strings.Cut(entry.Slug, "/")
		if strings.Contains(domain, ".") {
			sites = append(sites, "http://"+domain)
		}
	}
	return pstrings.DedupeAndTrim(sites)
}

// Forget drops cached state for site: its neighbourhood and its breaker.
func (c *Client) Forget(site string) {
	site = normalizeSite(site)
	c.neighborhoods.Delete(site)
	c.breakers.Delete(site)
}

// get fetches endpoint through site's breaker. Transport failures and 5xx
// answers count against the breaker; other answers count as healthy.
func (c *Client) get(ctx context.Context, site, endpoint string) ([]byte, error) {
	breaker := c.breaker(site)
	if !breaker.Allow() {
		c.metrics.IncBreakerRejection()
		return nil, fmt.Errorf("site %s skipped, circuit open: %w", site, sentinel.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", site, sentinel.ErrUnavailable)
	}
	req.Header.Set("Accept", "application/json")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx, breaker)
		return nil, fmt.Errorf("query %s: %w: %w", site, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx, breaker)
		return nil, fmt.Errorf("query %s: status %d: %w", site, resp.StatusCode, sentinel.ErrUnavailable)
	}
	c.recordSuccess(ctx, breaker)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("query %s: status %d: %w", site, resp.StatusCode, sentinel.ErrNotFound)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w: %w", site, sentinel.ErrUnavailable, err)
	}
	return body, nil
}

func (c *Client) breaker(site string) *circuit.Breaker {
	if b, ok := c.breakers.Get(site); ok {
		c.breakers.SetDefault(site, b)
		return b.(*circuit.Breaker)
	}
	b := circuit.New(site, c.breakerOpts...)
	if err := c.breakers.Add(site, b, cache.DefaultExpiration); err != nil {
		// Lost a race with another query; use the stored breaker.
		if existing, ok := c.breakers.Get(site); ok {
			return existing.(*circuit.Breaker)
		}
	}
	return b
}

func (c *Client) recordFailure(ctx context.Context, b *circuit.Breaker) {
	if _, change := b.RecordFailure(); change.Opened {
		c.metrics.IncBreakerOpened()
		c.logger.WarnContext(ctx, "neighbor circuit opened", "site", b.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context, b *circuit.Breaker) {
	if _, change := b.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "neighbor circuit closed", "site", b.Name())
	}
}

// decodeURLField accepts either a single URL or a list of URLs.
func decodeURLField(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// validURLs keeps absolute http(s) URLs, de-duplicated in order.
func validURLs(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, candidate := range pstrings.DedupeAndTrim(candidates) {
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func normalizeSite(site string) string {
	return strings.TrimRight(strings.TrimSpace(site), "/")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
