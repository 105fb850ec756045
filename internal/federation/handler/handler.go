// Package handler exposes the federation facade over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/registry"
	"emojifed/internal/platform/metrics"
	"emojifed/internal/platform/middleware"
	dErrors "emojifed/pkg/domain-errors"
	"emojifed/pkg/platform/httputil"
)

// BasePath prefixes every federation route.
const BasePath = "/plugin/allyabase/federation"

// Service defines the interface for federation operations.
type Service interface {
	Register(ctx context.Context, identifier, url string) (address.Location, registry.RegisterResult, error)
	Lookup(ctx context.Context, identifier string) (address.Location, []string, error)
	List(ctx context.Context) map[string][]string
	Resolve(ctx context.Context, text, startSite string) (string, error)
	Parse(text string) (address.Address, error)
	Neighborhood(ctx context.Context) []string
}

// Handler handles federation endpoints.
type Handler struct {
	logger         *slog.Logger
	federation     Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

// New creates a new federation Handler. Resolution may walk several remote
// sites, so requestTimeout should exceed hops × neighbour timeout.
func New(federation Service, logger *slog.Logger, metrics *metrics.Metrics, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Handler{
		logger:         logger,
		federation:     federation,
		metrics:        metrics,
		requestTimeout: requestTimeout,
	}
}

// Register registers the federation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.ClientMetadata)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.Route(BasePath, func(r chi.Router) {
			r.Post("/register", h.handleRegister)
			r.Get("/location/{identifier}", h.handleLocation)
			r.Get("/locations", h.handleLocations)
			r.Post("/resolve", h.handleResolve)
			r.Post("/parse", h.handleParse)
		})
		r.Get("/system/sitemap.json", h.handleSitemap)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.LocationIdentifier) == "" || strings.TrimSpace(req.URL) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Missing locationIdentifier or url"))
		return
	}

	loc, result, err := h.federation.Register(ctx, req.LocationIdentifier, req.URL)
	if err != nil {
		h.logger.WarnContext(ctx, "register rejected",
			"request_id", requestID,
			"identifier", req.LocationIdentifier,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, RegisterResponse{
		Success:            true,
		Added:              result.Added,
		Reason:             result.Reason,
		URLCount:           result.URLCount,
		MaxURLs:            result.MaxURLs,
		LocationIdentifier: loc.String(),
		URL:                strings.TrimSpace(req.URL),
	})
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identifier, err := url.PathUnescape(chi.URLParam(r, "identifier"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed identifier"))
		return
	}

	loc, urls, err := h.federation.Lookup(ctx, identifier)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeLocationNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeLocationNotFound, "Location "+identifier+" not found"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LocationResponse{
		LocationIdentifier: loc.String(),
		URL:                urls[0],
		URLs:               urls,
	})
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.federation.List(r.Context()))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req ResolveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Shortcode) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Missing shortcode"))
		return
	}

	resolved, err := h.federation.Resolve(ctx, req.Shortcode, strings.TrimSpace(req.CurrentWikiURL))
	if err != nil {
		h.logger.InfoContext(ctx, "resolve failed",
			"request_id", requestID,
			"shortcode", req.Shortcode,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{
		Success:     true,
		Shortcode:   req.Shortcode,
		ResolvedURL: resolved,
	})
}

func (h *Handler) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Shortcode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Missing shortcode"))
		return
	}

	addr, err := h.federation.Parse(req.Shortcode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ParseResponse{
		Success:            true,
		FederationPrefix:   addr.Prefix,
		LocationIdentifier: addr.Location.String(),
		ResourcePath:       addr.ResourcePath,
	})
}

// handleSitemap publishes this site's neighbourhood in the sitemap format
// neighbour clients read: one "host/page" slug per known site.
func (h *Handler) handleSitemap(w http.ResponseWriter, r *http.Request) {
	sites := h.federation.Neighborhood(r.Context())
	entries := make([]SitemapEntry, 0, len(sites)+1)
	entries = append(entries, SitemapEntry{Slug: "welcome-visitors", Title: "Welcome Visitors"})
	for _, site := range sites {
		u, err := url.Parse(site)
		if err != nil || u.Host == "" {
			continue
		}
		entries = append(entries, SitemapEntry{Slug: u.Host + "/welcome-visitors", Title: u.Host})
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
