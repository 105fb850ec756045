// Package service is the federation facade used by transports and the CLI.
// It turns address text into resolved URLs and maps every failure onto a
// coded domain error.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/discovery"
	"emojifed/internal/federation/registry"
	dErrors "emojifed/pkg/domain-errors"
	pstrings "emojifed/pkg/platform/strings"
)

var (
	ErrInvalidAddress   = errors.New("not a valid federated address")
	ErrLocationNotFound = errors.New("location not found in federation")
)

// Registry is the registry surface the facade needs.
type Registry interface {
	Register(ctx context.Context, loc address.Location, url string) (registry.RegisterResult, error)
	Lookup(loc address.Location) []string
	Entries() map[string][]string
}

// Discoverer finds URLs for locations missing from the registry.
type Discoverer interface {
	Discover(ctx context.Context, startSite string, loc address.Location, maxHops int) []string
}

// Service is safe for concurrent use.
type Service struct {
	registry   Registry
	discoverer Discoverer
	parser     *address.Parser

	selfURL   string
	maxHops   int
	neighbors []string

	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSelfURL sets the site a resolution starts from when the caller names none.
func WithSelfURL(u string) Option {
	return func(s *Service) {
		s.selfURL = strings.TrimRight(strings.TrimSpace(u), "/")
	}
}

func WithMaxHops(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxHops = n
		}
	}
}

// WithNeighbors lists peer sites advertised in this site's neighbourhood.
func WithNeighbors(sites []string) Option {
	return func(s *Service) {
		s.neighbors = pstrings.DedupeAndTrim(sites)
	}
}

func WithParser(p *address.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(reg Registry, discoverer Discoverer, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if discoverer == nil {
		return nil, errors.New("discoverer is required")
	}
	s := &Service{
		registry:   reg,
		discoverer: discoverer,
		parser:     address.NewParser(),
		maxHops:    discovery.DefaultMaxHops,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Resolve turns address text into a URL: the first known URL of the
// location followed by the resource path, verbatim. An empty startSite falls
// back to this site's own URL.
func (s *Service) Resolve(ctx context.Context, text, startSite string) (string, error) {
	addr, err := s.Parse(text)
	if err != nil {
		return "", err
	}
	if startSite == "" {
		startSite = s.selfURL
	}

	urls := s.discoverer.Discover(ctx, startSite, addr.Location, s.maxHops)
	if len(urls) == 0 {
		return "", dErrors.Wrap(ErrLocationNotFound, dErrors.CodeLocationNotFound,
			fmt.Sprintf("could not find location %s in federation", addr.Location))
	}

	resolved := urls[0] + addr.ResourcePath
	s.logger.InfoContext(ctx, "resolved federated address",
		"identifier", addr.Location.String(),
		"resolved_url", resolved,
		"mirrors", len(urls),
	)
	return resolved, nil
}

// Parse splits address text into its parts.
func (s *Service) Parse(text string) (address.Address, error) {
	addr, ok := s.parser.Parse(text)
	if !ok {
		return address.Address{}, dErrors.Wrap(ErrInvalidAddress, dErrors.CodeInvalidAddress,
			"not a valid federated address")
	}
	return addr, nil
}

// Register adds url under identifier. Duplicates and a full entry are
// reported in the result, not as errors.
func (s *Service) Register(ctx context.Context, identifier, rawURL string) (address.Location, registry.RegisterResult, error) {
	loc, err := s.location(identifier)
	if err != nil {
		return address.Location{}, registry.RegisterResult{}, err
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return address.Location{}, registry.RegisterResult{}, dErrors.New(dErrors.CodeBadRequest, "url is required")
	}
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return address.Location{}, registry.RegisterResult{}, dErrors.New(dErrors.CodeBadRequest, "url must be absolute")
	}

	result, err := s.registry.Register(ctx, loc, rawURL)
	if err != nil {
		return address.Location{}, registry.RegisterResult{}, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}
	return loc, result, nil
}

// Lookup returns the URLs registered locally for identifier. It never walks
// the federation.
func (s *Service) Lookup(_ context.Context, identifier string) (address.Location, []string, error) {
	loc, err := s.location(identifier)
	if err != nil {
		return address.Location{}, nil, err
	}
	urls := s.registry.Lookup(loc)
	if len(urls) == 0 {
		return loc, nil, dErrors.Wrap(ErrLocationNotFound, dErrors.CodeLocationNotFound, "location not found")
	}
	return loc, urls, nil
}

// List returns every registered location.
func (s *Service) List(_ context.Context) map[string][]string {
	return s.registry.Entries()
}

// Neighborhood returns the sites this site advertises to its peers: the
// configured neighbours followed by the origins of every registered URL.
func (s *Service) Neighborhood(_ context.Context) []string {
	sites := slices.Clone(s.neighbors)
	entries := s.registry.Entries()
	for _, identifier := range slices.Sorted(maps.Keys(entries)) {
		for _, raw := range entries[identifier] {
			if origin := originOf(raw); origin != "" && origin != s.selfURL {
				sites = append(sites, origin)
			}
		}
	}
	return pstrings.DedupeAndTrim(sites)
}

func (s *Service) SelfURL() string {
	return s.selfURL
}

func (s *Service) location(identifier string) (address.Location, error) {
	loc, err := address.ParseLocation(identifier)
	if err != nil {
		return address.Location{}, dErrors.Wrap(err, dErrors.CodeInvalidLocation,
			"location identifier must be exactly three emoji")
	}
	return loc, nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
