package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeSite is an httptest server speaking the two federation endpoints a
// neighbour client consumes. Mappings and neighbours can be changed while the
// server runs; every query is counted.
type FakeSite struct {
	Server *httptest.Server

	mu        sync.RWMutex
	mappings  map[string][]string
	neighbors []string
	failing   bool
	rawLookup map[string]string
	rawMap    string

	locationQueries atomic.Int64
	sitemapQueries  atomic.Int64
}

// NewFakeSite starts a fake site and closes it when the test ends.
func NewFakeSite(t *testing.T) *FakeSite {
	t.Helper()

	fs := &FakeSite{
		mappings:  make(map[string][]string),
		rawLookup: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Get("/plugin/allyabase/federation/location/{identifier}", fs.serveLocation)
	r.Get("/system/sitemap.json", fs.serveSitemap)

	fs.Server = httptest.NewServer(r)
	t.Cleanup(fs.Server.Close)
	return fs
}

// URL is the site's base URL, e.g. http://127.0.0.1:41234.
func (fs *FakeSite) URL() string {
	return fs.Server.URL
}

// Map makes the site answer identifier with urls.
func (fs *FakeSite) Map(identifier string, urls ...string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mappings[identifier] = append([]string(nil), urls...)
}

// MapRaw makes the site answer identifier with a verbatim body.
func (fs *FakeSite) MapRaw(identifier, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.rawLookup[identifier] = body
}

// Link lists the given sites in this site's sitemap.
func (fs *FakeSite) Link(sites ...*FakeSite) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, s := range sites {
		fs.neighbors = append(fs.neighbors, s.URL())
	}
}

// SetSitemap replaces the sitemap with a verbatim body.
func (fs *FakeSite) SetSitemap(body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.rawMap = body
}

// SetFailing makes every endpoint answer 500.
func (fs *FakeSite) SetFailing(failing bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failing = failing
}

func (fs *FakeSite) LocationQueries() int64 {
	return fs.locationQueries.Load()
}

func (fs *FakeSite) SitemapQueries() int64 {
	return fs.sitemapQueries.Load()
}

// Queries is the total number of requests the site has served.
func (fs *FakeSite) Queries() int64 {
	return fs.LocationQueries() + fs.SitemapQueries()
}

func (fs *FakeSite) serveLocation(w http.ResponseWriter, r *http.Request) {
	fs.locationQueries.Add(1)
	identifier, err := url.PathUnescape(chi.URLParam(r, "identifier"))
	if err != nil {
		http.Error(w, "bad identifier", http.StatusBadRequest)
		return
	}

	fs.mu.RLock()
	failing := fs.failing
	raw, hasRaw := fs.rawLookup[identifier]
	urls := fs.mappings[identifier]
	fs.mu.RUnlock()

	switch {
	case failing:
		http.Error(w, "boom", http.StatusInternalServerError)
	case hasRaw:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	case len(urls) == 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"location not found"}`))
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"locationIdentifier": identifier,
			"url":                urls[0],
			"urls":               urls,
		})
	}
}

func (fs *FakeSite) serveSitemap(w http.ResponseWriter, _ *http.Request) {
	fs.sitemapQueries.Add(1)

	fs.mu.RLock()
	failing := fs.failing
	raw := fs.rawMap
	neighbors := append([]string(nil), fs.neighbors...)
	fs.mu.RUnlock()

	if failing {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if raw != "" {
		_, _ = w.Write([]byte(raw))
		return
	}

	entries := make([]map[string]string, 0, len(neighbors)+1)
	entries = append(entries, map[string]string{"slug": "welcome-visitors", "title": "Welcome Visitors"})
	for _, n := range neighbors {
		host := strings.TrimPrefix(strings.TrimPrefix(n, "http://"), "https://")
		entries = append(entries, map[string]string{"slug": host + "/welcome-visitors", "title": "Welcome Visitors"})
	}
	_ = json.NewEncoder(w).Encode(entries)
}
