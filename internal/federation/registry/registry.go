// Package registry keeps the durable identifier → URL mapping for federated
// locations.
//
// Every location maps to an ordered list of at most MaxURLs unique URLs
// (mirrors). Lists only grow: a URL is appended on first registration and
// never removed. The registry is the only writer of persisted state; discovery
// caches its findings through RegisterMany so discovered and manually
// registered locations are indistinguishable.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"emojifed/internal/federation/address"
	pstrings "emojifed/pkg/platform/strings"
)

// MaxURLs is the capacity of one location entry.
const MaxURLs = 9

// Rejection reasons reported in RegisterResult.Reason.
const (
	ReasonAlreadyExists = "already_exists"
	ReasonMaxReached    = "max_reached"
)

var (
	ErrEmptyURL        = errors.New("url is required")
	ErrInvalidLocation = address.ErrInvalidLocation
)

// Store persists the full registry state. Load must return an empty map and
// no error when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, entries map[string][]string) error
}

// RegisterResult is the structured outcome of a registration. A rejected
// registration is not an error.
type RegisterResult struct {
	Added    bool   `json:"added"`
	Reason   string `json:"reason,omitempty"`
	URLCount int    `json:"urlCount"`
	MaxURLs  int    `json:"maxUrls"`
}

// Registry is safe for concurrent use. Appends to an entry are serialised so
// two registrations racing near the cap cannot both succeed.
type Registry struct {
	mu      sync.RWMutex
	entries map[address.Location][]string

	// persistMu orders full-state writes so an older snapshot never
	// overwrites a newer one.
	persistMu sync.Mutex
	store     Store

	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates a registry and loads its state from store. A nil store keeps
// state in memory only. Load failures are logged and the registry starts
// empty; they never prevent startup.
func New(ctx context.Context, store Store, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[address.Location][]string),
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.load(ctx)
	return r
}

func (r *Registry) load(ctx context.Context) {
	if r.store == nil {
		return
	}
	raw, err := r.store.Load(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load location registry, starting empty",
			"error", err,
		)
		return
	}

	for identifier, urls := range raw {
		loc, err := address.ParseLocation(identifier)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping persisted entry with invalid identifier",
				"identifier", identifier,
			)
			continue
		}
		clean := pstrings.DedupeAndTrim(urls)
		if len(clean) > MaxURLs {
			r.logger.WarnContext(ctx, "truncating persisted entry over capacity",
				"identifier", identifier,
				"url_count", len(clean),
			)
			clean = clean[:MaxURLs]
		}
		if len(clean) == 0 {
			continue
		}
		r.entries[loc] = clean
	}
	r.metrics.SetLocations(len(r.entries))
	r.logger.InfoContext(ctx, "location registry loaded", "locations", len(r.entries))
}

// Register appends url to the location's entry. The returned error is only
// set for invalid input; duplicates and a full entry are reported through
// RegisterResult. A successful append is persisted before Register returns.
func (r *Registry) Register(ctx context.Context, loc address.Location, url string) (RegisterResult, error) {
	if loc.IsZero() {
		return RegisterResult{}, ErrInvalidLocation
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return RegisterResult{}, ErrEmptyURL
	}

	result, added := r.append(loc, []string{url})
	r.metrics.IncRegistration(outcome(result))
	if added > 0 {
		r.logger.InfoContext(ctx, "registered location",
			"identifier", loc.String(),
			"url", url,
			"url_count", result.URLCount,
		)
		r.persist(ctx)
	}
	return result, nil
}

// RegisterMany appends every new URL in urls until the entry is full and
// persists once. It returns the number of URLs added.
func (r *Registry) RegisterMany(ctx context.Context, loc address.Location, urls []string) int {
	if loc.IsZero() {
		return 0
	}
	urls = pstrings.DedupeAndTrim(urls)
	if len(urls) == 0 {
		return 0
	}

	result, added := r.append(loc, urls)
	if added > 0 {
		r.metrics.AddRegistrations("added", added)
		r.logger.InfoContext(ctx, "registered discovered location",
			"identifier", loc.String(),
			"added", added,
			"url_count", result.URLCount,
		)
		r.persist(ctx)
	}
	return added
}

// append adds urls under the write lock. The result describes the last URL
// considered.
func (r *Registry) append(loc address.Location, urls []string) (RegisterResult, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.entries[loc]
	isNew := len(current) == 0
	result := RegisterResult{MaxURLs: MaxURLs}
	added := 0
	for _, url := range urls {
		switch {
		case slices.Contains(current, url):
			result.Added = false
			result.Reason = ReasonAlreadyExists
		case len(current) >= MaxURLs:
			result.Added = false
			result.Reason = ReasonMaxReached
		default:
			current = append(current, url)
			result.Added = true
			result.Reason = ""
			added++
		}
	}
	if added > 0 {
		r.entries[loc] = current
		if isNew {
			r.metrics.SetLocations(len(r.entries))
		}
	}
	result.URLCount = len(current)
	return result, added
}

// Lookup returns a copy of the URLs registered for loc, or nil.
func (r *Registry) Lookup(loc address.Location) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries[loc])
}

// Entries returns a snapshot keyed by identifier string.
func (r *Registry) Entries() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.entries))
	for loc, urls := range r.entries {
		out[loc.String()] = slices.Clone(urls)
	}
	return out
}

// Locations returns the registered location identifiers in sorted order.
func (r *Registry) Locations() []address.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(r.entries), func(a, b address.Location) int {
		return strings.Compare(a.String(), b.String())
	})
}

// persist rewrites the full state. Failures are logged and counted but never
// undo the in-memory registration.
func (r *Registry) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	// The write must finish even if the caller's request is cancelled.
	ctx = context.WithoutCancel(ctx)

	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	start := time.Now()
	snapshot := r.Entries()
	if err := r.store.Save(ctx, snapshot); err != nil {
		r.metrics.IncPersistFailure()
		r.logger.ErrorContext(ctx, "failed to persist location registry",
			"error", err,
			"locations", len(snapshot),
		)
		return
	}
	r.metrics.ObservePersist(start)
}

func outcome(result RegisterResult) string {
	if result.Added {
		return "added"
	}
	return result.Reason
}
