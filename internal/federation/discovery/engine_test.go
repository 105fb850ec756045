package discovery

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks NeighborClient,Registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/discovery/mocks"
	"emojifed/internal/federation/neighbor"
	"emojifed/internal/federation/registry"
	"emojifed/pkg/platform/sentinel"
	"emojifed/pkg/testutil"
)

const (
	siteA = "http://a.example"
	siteB = "http://b.example"
	siteC = "http://c.example"
)

var errUnreachable = fmt.Errorf("dial tcp: %w", sentinel.ErrUnavailable)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustLocation(s string) address.Location {
	loc, err := address.ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return loc
}

var peaceFlagAlien = mustLocation("☮\ufe0f🏴👽")

// EngineSuite drives the walk with mocked neighbours so every remote call is
// asserted explicitly; an unexpected query fails the test.
type EngineSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	neighbors *mocks.MockNeighborClient
	registry  *mocks.MockRegistry
	metrics   *Metrics
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.neighbors = mocks.NewMockNeighborClient(s.ctrl)
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.engine = New(s.neighbors, s.registry, WithLogger(quietLogger()), WithMetrics(s.metrics))
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineSuite) miss() {
	s.registry.EXPECT().Lookup(peaceFlagAlien).Return(nil)
}

func (s *EngineSuite) TestRegistryHitMakesNoQueries() {
	stored := []string{"http://a.example", "http://b.example"}
	s.registry.EXPECT().Lookup(peaceFlagAlien).Return(stored)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, DefaultMaxHops)

	s.Equal(stored, got)
	s.InDelta(1, promtest.ToFloat64(s.metrics.Discoveries.WithLabelValues("cached")), 0)
}

func (s *EngineSuite) TestZeroHopsQueriesOnlyStartSite() {
	s.miss()
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(nil, sentinel.ErrNotFound)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, 0)

	s.Empty(got)
	s.InDelta(1, promtest.ToFloat64(s.metrics.Discoveries.WithLabelValues("not_found")), 0)
}

func (s *EngineSuite) TestNegativeHopsBehaveLikeZero() {
	s.miss()
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return([]string{"http://x.example"}, nil)
	s.registry.EXPECT().RegisterMany(gomock.Any(), peaceFlagAlien, []string{"http://x.example"}).Return(1)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, -4)

	s.Equal([]string{"http://x.example"}, got)
}

func (s *EngineSuite) TestCollectsAnswersAcrossMirrors() {
	s.miss()
	gomock.InOrder(
		s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return([]string{"http://m1.example"}, nil),
		s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteB, siteC}, nil),
		s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return([]string{"http://m1.example", "http://m2.example"}, nil),
		s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteC, peaceFlagAlien).Return(nil, errUnreachable),
	)
	want := []string{"http://m1.example", "http://m2.example"}
	s.registry.EXPECT().RegisterMany(gomock.Any(), peaceFlagAlien, want).Return(2)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, 1)

	s.Equal(want, got)
	s.InDelta(1, promtest.ToFloat64(s.metrics.Discoveries.WithLabelValues("discovered")), 0)
}

func (s *EngineSuite) TestStopsAtCapacity() {
	s.miss()
	first := make([]string, 0, 5)
	for i := range 5 {
		first = append(first, fmt.Sprintf("http://m%d.example", i))
	}
	second := make([]string, 0, 6)
	for i := 5; i < 11; i++ {
		second = append(second, fmt.Sprintf("http://m%d.example", i))
	}

	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(first, nil)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteB, siteC}, nil)
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return(second, nil)
	// siteC is never contacted once the cap is reached.

	want := append(append([]string{}, first...), second[:4]...)
	s.registry.EXPECT().RegisterMany(gomock.Any(), peaceFlagAlien, want).Return(registry.MaxURLs)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, DefaultMaxHops)

	s.Len(got, registry.MaxURLs)
	s.Equal(want, got)
}

func (s *EngineSuite) TestFailuresAreSwallowed() {
	s.miss()
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(nil, errUnreachable)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteB}, nil)
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return(nil, errUnreachable)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteB).Return(nil, errUnreachable)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, 2)

	s.Empty(got)
}

func (s *EngineSuite) TestCyclesVisitEachSiteOnce() {
	s.miss()
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(nil, sentinel.ErrNotFound).Times(1)
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return(nil, sentinel.ErrNotFound).Times(1)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteB, siteA}, nil).Times(1)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteB).Return([]string{siteA, siteB}, nil).Times(1)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, DefaultMaxHops)

	s.Empty(got)
}

func (s *EngineSuite) TestHopLimitBoundsNeighbourhoodQueries() {
	s.miss()
	// A (hop 0) -> B (hop 1) -> C (hop 2); with maxHops 1, C is never reached
	// and B's neighbourhood is never requested.
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(nil, sentinel.ErrNotFound)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteB}, nil)
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return(nil, sentinel.ErrNotFound)

	got := s.engine.Discover(context.Background(), siteA, peaceFlagAlien, 1)

	s.Empty(got)
}

func (s *EngineSuite) TestEmptyStartSite() {
	s.miss()

	got := s.engine.Discover(context.Background(), "", peaceFlagAlien, DefaultMaxHops)

	s.Nil(got)
}

func (s *EngineSuite) TestTrailingSlashIsSameSite() {
	s.miss()
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteA, peaceFlagAlien).Return(nil, sentinel.ErrNotFound).Times(1)
	s.neighbors.EXPECT().QueryNeighborhood(gomock.Any(), siteA).Return([]string{siteA + "/", siteB + "/", " "}, nil)
	s.neighbors.EXPECT().QueryMapping(gomock.Any(), siteB, peaceFlagAlien).Return(nil, sentinel.ErrNotFound).Times(1)

	got := s.engine.Discover(context.Background(), siteA+"/", peaceFlagAlien, 1)

	s.Empty(got)
}

// gatedNeighbors answers from fixed maps. Mapping queries for sites listed in
// gated block until release is closed.
type gatedNeighbors struct {
	mappings map[string][]string
	links    map[string][]string
	gated    map[string]bool
	release  chan struct{}
	queried  chan string
	calls    atomic.Int64
}

func newGatedNeighbors() *gatedNeighbors {
	return &gatedNeighbors{
		mappings: map[string][]string{},
		links:    map[string][]string{},
		gated:    map[string]bool{},
		release:  make(chan struct{}),
		queried:  make(chan string, 64),
	}
}

func (g *gatedNeighbors) QueryMapping(_ context.Context, site string, _ address.Location) ([]string, error) {
	g.calls.Add(1)
	g.queried <- site
	if g.gated[site] {
		<-g.release
	}
	if urls, ok := g.mappings[site]; ok {
		return urls, nil
	}
	return nil, sentinel.ErrNotFound
}

func (g *gatedNeighbors) QueryNeighborhood(_ context.Context, site string) ([]string, error) {
	return g.links[site], nil
}

// countingRegistry counts lookups so a test can tell when every caller has
// passed the registry check and is waiting on the walk.
type countingRegistry struct {
	*registry.Registry
	lookups atomic.Int64
}

func (c *countingRegistry) Lookup(loc address.Location) []string {
	c.lookups.Add(1)
	return c.Registry.Lookup(loc)
}

func newCountingRegistry() *countingRegistry {
	return &countingRegistry{Registry: registry.New(context.Background(), nil, registry.WithLogger(quietLogger()))}
}

func TestDiscover_CancelledCallerDoesNotTruncateSharedWalk(t *testing.T) {
	neighbors := newGatedNeighbors()
	neighbors.mappings[siteA] = []string{"http://one.example"}
	neighbors.mappings[siteB] = []string{"http://two.example"}
	neighbors.links[siteA] = []string{siteB}
	neighbors.gated[siteB] = true

	reg := newCountingRegistry()
	engine := New(neighbors, reg, WithLogger(quietLogger()))

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan []string, 1)
	go func() {
		leaderDone <- engine.Discover(leaderCtx, siteA, peaceFlagAlien, DefaultMaxHops)
	}()
	require.Equal(t, siteA, <-neighbors.queried)
	require.Equal(t, siteB, <-neighbors.queried)

	followerDone := make(chan []string, 1)
	go func() {
		followerDone <- engine.Discover(context.Background(), siteA, peaceFlagAlien, DefaultMaxHops)
	}()
	require.Eventually(t, func() bool { return reg.lookups.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case got := <-leaderDone:
		assert.Nil(t, got)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the walk")
	}

	close(neighbors.release)
	want := []string{"http://one.example", "http://two.example"}
	select {
	case got := <-followerDone:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("follower never received the walk result")
	}
	assert.Equal(t, want, reg.Registry.Lookup(peaceFlagAlien))
	assert.Equal(t, int64(2), neighbors.calls.Load())
}

func TestDiscover_CancelledBeforeStartStillRecords(t *testing.T) {
	neighbors := newGatedNeighbors()
	neighbors.mappings[siteA] = []string{"http://one.example"}

	reg := newCountingRegistry()
	engine := New(neighbors, reg, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = engine.Discover(ctx, siteA, peaceFlagAlien, 0)

	require.Eventually(t, func() bool {
		return len(reg.Registry.Lookup(peaceFlagAlien)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDiscover_ChainOverHTTP(t *testing.T) {
	ctx := context.Background()
	a := testutil.NewFakeSite(t)
	b := testutil.NewFakeSite(t)
	c := testutil.NewFakeSite(t)
	a.Link(b)
	b.Link(c)
	c.Map(peaceFlagAlien.String(), "http://home.example")

	reg := registry.New(ctx, nil, registry.WithLogger(quietLogger()))
	engine := New(
		neighbor.New(neighbor.WithLogger(quietLogger())),
		reg,
		WithLogger(quietLogger()),
	)

	got := engine.Discover(ctx, a.URL(), peaceFlagAlien, 2)
	require.Equal(t, []string{"http://home.example"}, got)
	assert.Equal(t, got, reg.Lookup(peaceFlagAlien))

	bQueries, cQueries := b.Queries(), c.Queries()

	again := engine.Discover(ctx, a.URL(), peaceFlagAlien, 2)
	assert.Equal(t, got, again)
	assert.Equal(t, bQueries, b.Queries())
	assert.Equal(t, cQueries, c.Queries())
}

func TestDiscover_ChainBeyondHopLimit(t *testing.T) {
	ctx := context.Background()
	a := testutil.NewFakeSite(t)
	b := testutil.NewFakeSite(t)
	c := testutil.NewFakeSite(t)
	a.Link(b)
	b.Link(c)
	c.Map(peaceFlagAlien.String(), "http://home.example")

	reg := registry.New(ctx, nil, registry.WithLogger(quietLogger()))
	engine := New(neighbor.New(neighbor.WithLogger(quietLogger())), reg, WithLogger(quietLogger()))

	assert.Empty(t, engine.Discover(ctx, a.URL(), peaceFlagAlien, 1))
	assert.Zero(t, c.Queries())
	assert.Empty(t, reg.Lookup(peaceFlagAlien))
}

func TestDiscover_ConcurrentCallsShareOneWalk(t *testing.T) {
	neighbors := newGatedNeighbors()
	neighbors.mappings[siteA] = []string{"http://home.example", "http://mirror.example"}
	neighbors.gated[siteA] = true

	reg := newCountingRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := New(neighbors, reg, WithLogger(quietLogger()), WithMetrics(metrics))

	const callers = 20
	results := make([][]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = engine.Discover(context.Background(), siteA, peaceFlagAlien, 0)
		}()
	}
	require.Eventually(t, func() bool { return reg.lookups.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(neighbors.release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"http://home.example", "http://mirror.example"}, r)
	}
	assert.Equal(t, results[0], reg.Registry.Lookup(peaceFlagAlien))
	assert.Equal(t, int64(1), neighbors.calls.Load())
	assert.InDelta(t, callers, promtest.ToFloat64(metrics.Coalesced), 0)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncDiscovery("cached")
		m.IncCoalesced()
	})
}
