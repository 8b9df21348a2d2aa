package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/polyline"
)

type fakeProvider struct {
	mu       sync.Mutex
	body     []byte
	err      error
	requests []domain.RouteRequest
	block    chan struct{}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ComputeRoute(ctx context.Context, req domain.RouteRequest) ([]byte, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	return p.body, p.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	segments int
	cursor   int
	events   int
}

func (m *recordingMetrics) CalculationInc(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ProviderObserve(string, time.Duration) {}

func (m *recordingMetrics) EventPublished(error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events++
}

func (m *recordingMetrics) PlaybackSet(segments, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments, m.cursor = segments, cursor
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RouteCalculatedEvent
}

func (p *recordingPublisher) PublishRouteCalculated(ctx context.Context, e domain.RouteCalculatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// threeLegBody builds a computeRoutes body with one two-point leg per pair
func threeLegBody() []byte {
	leg := func(path []domain.GeoCoordinate) string {
		return `{"steps": [{"polyline": {"encodedPolyline": "` + polyline.Encode(path) + `"}}]}`
	}
	return []byte(`{"routes": [{"legs": [` +
		leg(coords(43.2389, 76.8897, 43.2567, 76.9286)) + `,` +
		leg(coords(43.2567, 76.9286, 43.2380, 76.9450)) + `,` +
		leg(coords(43.2380, 76.9450, 43.2389, 76.8897)) +
		`]}]}`)
}

func newTestRouteService(t *testing.T, provider RouteProvider, opts ...RouteServiceOption) *RouteService {
	t.Helper()
	return NewRouteService(loadedCatalog(t), provider, opts...)
}

func TestRouteServiceCalculate(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody()}
	metrics := &recordingMetrics{}
	publisher := &recordingPublisher{}
	svc := newTestRouteService(t, provider,
		WithMetrics(metrics),
		WithPublisher(publisher),
		WithDefaultAvoid(domain.AvoidFerries))

	calc, err := svc.Calculate(context.Background(), CalculateInput{
		Home:  "Home",
		Stops: []string{"School No. 12", "Lyceum No. 165"},
	})
	require.NoError(t, err)
	svc.WaitBackground()

	assert.Equal(t, "fake", calc.Provider)
	assert.Equal(t, 3, calc.Playback.Len())
	assert.Equal(t, 0, calc.Playback.Cursor)
	assert.Equal(t, []domain.Avoid{domain.AvoidFerries}, calc.Request.Avoid)

	require.Len(t, provider.requests, 1)
	assert.Len(t, provider.requests[0].Intermediates, 2)

	assert.Equal(t, []string{"ok"}, metrics.outcomes)
	assert.Equal(t, 3, metrics.segments)
	assert.Equal(t, 1, metrics.events)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, 3, publisher.events[0].Segments)
	assert.Len(t, publisher.events[0].Colors, 3)
	assert.Greater(t, publisher.events[0].DistanceMeters, 0.0)

	assert.Equal(t, 1, svc.Advance().Cursor)
	assert.Equal(t, 2, svc.Advance().Cursor)
	assert.Equal(t, 1, svc.Rewind().Cursor)
	assert.Equal(t, 1, svc.Playback().Cursor)
	assert.Equal(t, 0, svc.Restart().Cursor)
}

func TestRouteServiceFailureKeepsPlayback(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody()}
	svc := newTestRouteService(t, provider)

	_, err := svc.Calculate(context.Background(), CalculateInput{Home: "Home", Stops: []string{"School No. 12", "School No. 35"}})
	require.NoError(t, err)
	svc.Advance()
	before := svc.Playback()

	failures := []struct {
		name string
		in   CalculateInput
		body []byte
		perr error
		want error
	}{
		{"missing home", CalculateInput{Stops: []string{"School No. 12", "School No. 35"}}, threeLegBody(), nil, domain.ErrMissingHome},
		{"one stop", CalculateInput{Home: "Home", Stops: []string{"School No. 12"}}, threeLegBody(), nil, domain.ErrInsufficientStops},
		{"unknown stop", CalculateInput{Home: "Home", Stops: []string{"School No. 12", "Nope"}}, threeLegBody(), nil, domain.ErrUnknownStop},
		{"empty route", CalculateInput{Home: "Home", Stops: []string{"School No. 12", "School No. 35"}}, []byte(`{}`), nil, domain.ErrEmptyRoute},
		{"provider failure", CalculateInput{Home: "Home", Stops: []string{"School No. 12", "School No. 35"}}, nil, &domain.ProviderRequestError{Provider: "fake", StatusCode: 502}, domain.ErrProviderRequest},
		{"rate limited", CalculateInput{Home: "Home", Stops: []string{"School No. 12", "School No. 35"}}, nil, &domain.RateLimitError{Provider: "fake"}, domain.ErrRateLimited},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			provider.body, provider.err = tt.body, tt.perr
			_, err := svc.Calculate(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, svc.Playback())
		})
	}
}

func TestRouteServiceRejectsConcurrentCalculation(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody(), block: make(chan struct{})}
	svc := newTestRouteService(t, provider)
	in := CalculateInput{Home: "Home", Stops: []string{"School No. 12", "School No. 35"}}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Calculate(context.Background(), in)
		done <- err
	}()

	require.Eventually(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return len(provider.requests) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Calculate(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrCalculationInProgress)

	close(provider.block)
	require.NoError(t, <-done)

	// the slot is free again
	provider.block = nil
	_, err = svc.Calculate(context.Background(), in)
	assert.NoError(t, err)
}

func TestRouteServiceProxy(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody()}
	svc := newTestRouteService(t, provider)
	req := sampleRequest(t)

	raw, err := svc.Proxy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, threeLegBody(), raw)

	provider.body = []byte(`{"routes": []}`)
	_, err = svc.Proxy(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrEmptyRoute)

	provider.err = &domain.ProviderRequestError{Provider: "fake", Err: errors.New("dial tcp: refused")}
	_, err = svc.Proxy(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrProviderRequest)

	// proxy never touches playback
	assert.Equal(t, 0, svc.Playback().Len())
}

func TestRouteServiceHomeLocation(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody()}
	publisher := &recordingPublisher{}
	svc := newTestRouteService(t, provider, WithPublisher(publisher))

	picked := domain.GeoCoordinate{Latitude: 43.25, Longitude: 76.90}
	calc, err := svc.Calculate(context.Background(), CalculateInput{
		Home:         "School No. 35",
		HomeLocation: &picked,
		Stops:        []string{"School No. 12", "Lyceum No. 165"},
	})
	require.NoError(t, err)
	svc.WaitBackground()

	assert.Equal(t, picked, calc.Request.Origin)
	assert.Equal(t, picked, calc.Request.Destination)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, picked.String(), publisher.events[0].Home)

	bad := domain.GeoCoordinate{Latitude: 43.25, Longitude: 190}
	_, err = svc.Calculate(context.Background(), CalculateInput{
		HomeLocation: &bad,
		Stops:        []string{"School No. 12", "Lyceum No. 165"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
	assert.Len(t, provider.requests, 1, "invalid home must not reach the provider")
}

func TestRouteServiceProxyDefaultAvoid(t *testing.T) {
	provider := &fakeProvider{body: threeLegBody()}
	svc := newTestRouteService(t, provider, WithDefaultAvoid(domain.AvoidTolls))

	_, err := svc.Proxy(context.Background(), sampleRequest(t))
	require.NoError(t, err)

	_, err = svc.Proxy(context.Background(), sampleRequest(t, WithAvoid(domain.AvoidHighways)))
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	assert.Equal(t, []domain.Avoid{domain.AvoidTolls}, provider.requests[0].Avoid)
	assert.Equal(t, []domain.Avoid{domain.AvoidHighways}, provider.requests[1].Avoid)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "busy", ErrorKind(domain.ErrCalculationInProgress))
	assert.Equal(t, "rate_limited", ErrorKind(&domain.RateLimitError{Provider: "x"}))
	assert.Equal(t, "provider_error", ErrorKind(&domain.ProviderRequestError{Provider: "x", StatusCode: 500}))
	assert.Equal(t, "empty_route", ErrorKind(domain.ErrEmptyRoute))
	assert.Equal(t, "malformed_geometry", ErrorKind(errors.Join(errors.New("leg 2"), domain.ErrMalformedGeometry)))
	assert.Equal(t, "canceled", ErrorKind(context.Canceled))
	assert.Equal(t, "error", ErrorKind(errors.New("other")))
}
