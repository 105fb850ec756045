package apiclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojifed/internal/federation/apiclient"
	"emojifed/internal/federation/discovery"
	"emojifed/internal/federation/handler"
	"emojifed/internal/federation/neighbor"
	"emojifed/internal/federation/registry"
	"emojifed/internal/federation/service"
	"emojifed/pkg/testutil"
)

const (
	peaceFlagAlien = "☮\ufe0f🏴👽"
	address        = "💚" + peaceFlagAlien + "/bdo/42"
)

func newServer(t *testing.T, peers ...*testutil.FakeSite) (*apiclient.Client, *testutil.FakeSite) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	self := testutil.NewFakeSite(t)
	self.Link(peers...)

	reg := registry.New(context.Background(), nil, registry.WithLogger(logger))
	engine := discovery.New(neighbor.New(neighbor.WithLogger(logger)), reg, discovery.WithLogger(logger))
	svc, err := service.New(reg, engine, service.WithLogger(logger), service.WithSelfURL(self.URL()))
	require.NoError(t, err)

	router := chi.NewRouter()
	handler.New(svc, logger, nil, 0).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL + "/")
	require.NoError(t, err)
	return client, self
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3000", "ftp://x.example", "http://"} {
		_, err := apiclient.New(raw)
		assert.Error(t, err, raw)
	}
}

func TestRegisterLookupList(t *testing.T) {
	client, _ := newServer(t)
	ctx := context.Background()

	reg, err := client.Register(ctx, peaceFlagAlien, "http://a.example")
	require.NoError(t, err)
	assert.True(t, reg.Added)
	assert.Equal(t, 1, reg.URLCount)

	dup, err := client.Register(ctx, peaceFlagAlien, "http://a.example")
	require.NoError(t, err)
	assert.False(t, dup.Added)
	assert.Equal(t, registry.ReasonAlreadyExists, dup.Reason)

	loc, err := client.Lookup(ctx, peaceFlagAlien)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example"}, loc.URLs)

	all, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{peaceFlagAlien: {"http://a.example"}}, all)
}

func TestLookup_NotFoundIsAPIError(t *testing.T) {
	client, _ := newServer(t)

	_, err := client.Lookup(context.Background(), peaceFlagAlien)

	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "location_not_found", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "not found")
}

func TestResolve_DiscoversThroughPeer(t *testing.T) {
	peer := testutil.NewFakeSite(t)
	peer.Map(peaceFlagAlien, "http://b.example")
	client, self := newServer(t, peer)

	resp, err := client.Resolve(context.Background(), address, self.URL())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "http://b.example/bdo/42", resp.ResolvedURL)
}

func TestResolve_InvalidAddress(t *testing.T) {
	client, _ := newServer(t)

	_, err := client.Resolve(context.Background(), "not an address", "")

	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestParse(t *testing.T) {
	client, _ := newServer(t)

	resp, err := client.Parse(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, "💚", resp.FederationPrefix)
	assert.Equal(t, peaceFlagAlien, resp.LocationIdentifier)
	assert.Equal(t, "/bdo/42", resp.ResourcePath)
}
