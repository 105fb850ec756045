// Package discovery finds the URLs of a location identifier that this site
// does not know yet by walking the neighbour graph breadth first.
//
// The registry doubles as the memo: a hit answers without any network
// traffic, and whatever a walk finds is written back through the registry so
// the next call for the same identifier is a hit.
package discovery

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/registry"
)

// DefaultMaxHops bounds a walk when the caller has no preference.
const DefaultMaxHops = 3

// NeighborClient asks remote sites about locations and their neighbours.
type NeighborClient interface {
	QueryMapping(ctx context.Context, site string, loc address.Location) ([]string, error)
	QueryNeighborhood(ctx context.Context, site string) ([]string, error)
}

// Registry is the subset of the location registry discovery reads and writes.
type Registry interface {
	Lookup(loc address.Location) []string
	RegisterMany(ctx context.Context, loc address.Location, urls []string) int
}

// Engine is safe for concurrent use. Each Discover call owns its own worklist.
type Engine struct {
	neighbors  NeighborClient
	registry   Registry
	maxResults int

	group singleflight.Group

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates a discovery engine writing its findings into reg.
func New(neighbors NeighborClient, reg Registry, opts ...Option) *Engine {
	e := &Engine{
		neighbors:  neighbors,
		registry:   reg,
		maxResults: registry.MaxURLs,
		logger:     slog.Default(),
		tracer:     otel.Tracer("emojifed/federation/discovery"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type hopSite struct {
	site string
	hop  int
}

// Discover returns the URLs known for loc, searching outward from startSite
// when the registry has none. Unreachable sites are skipped; an empty result
// means nothing within maxHops knows loc. A negative maxHops is treated as 0.
//
// Concurrent calls with the same arguments share one walk. The walk is bounded
// by the per-query timeouts of the neighbour client, not by ctx: a caller whose
// ctx ends stops waiting and gets nil, while the walk runs to completion for
// the remaining callers and the registry.
func (e *Engine) Discover(ctx context.Context, startSite string, loc address.Location, maxHops int) []string {
	if urls := e.registry.Lookup(loc); len(urls) > 0 {
		e.metrics.IncDiscovery("cached")
		return urls
	}
	startSite = normalizeSite(startSite)
	if startSite == "" {
		e.metrics.IncDiscovery("not_found")
		return nil
	}
	maxHops = max(maxHops, 0)

	key := loc.String() + "|" + startSite + "|" + strconv.Itoa(maxHops)
	walkCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return e.walk(walkCtx, startSite, loc, maxHops), nil
	})

	select {
	case <-ctx.Done():
		e.metrics.IncDiscovery("abandoned")
		return nil
	case res := <-ch:
		if res.Shared {
			e.metrics.IncCoalesced()
		}
		return slices.Clone(res.Val.([]string))
	}
}

func (e *Engine) walk(ctx context.Context, startSite string, loc address.Location, maxHops int) []string {
	ctx, span := e.tracer.Start(ctx, "discovery.Discover", trace.WithAttributes(
		attribute.String("federation.location", loc.String()),
		attribute.String("federation.start_site", startSite),
		attribute.Int("federation.max_hops", maxHops),
	))
	defer span.End()

	start := time.Now()
	visited := make(map[string]struct{})
	queue := []hopSite{{site: startSite, hop: 0}}
	var found []string
	queries := 0

	for len(queue) > 0 && len(found) < e.maxResults {
		next := queue[0]
		queue = queue[1:]

		if _, seen := visited[next.site]; seen || next.hop > maxHops {
			continue
		}
		visited[next.site] = struct{}{}

		queries++
		urls, err := e.neighbors.QueryMapping(ctx, next.site, loc)
		if err != nil {
			e.logger.DebugContext(ctx, "site offered no mapping",
				"site", next.site,
				"identifier", loc.String(),
				"hop", next.hop,
				"error", err,
			)
		}
		for _, u := range urls {
			if len(found) >= e.maxResults {
				break
			}
			if !slices.Contains(found, u) {
				found = append(found, u)
			}
		}
		if len(found) >= e.maxResults {
			break
		}

		if next.hop < maxHops {
			neighbors, err := e.neighbors.QueryNeighborhood(ctx, next.site)
			if err != nil {
				e.logger.DebugContext(ctx, "site neighbourhood unavailable",
					"site", next.site,
					"error", err,
				)
			}
			for _, n := range neighbors {
				n = normalizeSite(n)
				if n == "" {
					continue
				}
				if _, seen := visited[n]; !seen {
					queue = append(queue, hopSite{site: n, hop: next.hop + 1})
				}
			}
		}
	}

	span.SetAttributes(
		attribute.Int("federation.sites_queried", queries),
		attribute.Int("federation.url_count", len(found)),
	)
	e.metrics.ObserveWalk(start, queries)

	if len(found) == 0 {
		e.metrics.IncDiscovery("not_found")
		e.logger.InfoContext(ctx, "location not found in federation",
			"identifier", loc.String(),
			"start_site", startSite,
			"sites_queried", queries,
		)
		return nil
	}

	e.registry.RegisterMany(ctx, loc, found)
	e.metrics.IncDiscovery("discovered")
	e.logger.InfoContext(ctx, "discovered location",
		"identifier", loc.String(),
		"url_count", len(found),
		"sites_queried", queries,
	)
	return found
}

// normalizeSite matches the neighbour client's notion of a site, so that
// "http://a.example/" and "http://a.example" are visited once.
func normalizeSite(site string) string {
	return strings.TrimRight(strings.TrimSpace(site), "/")
}
