package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/logging"
)

// RouteMetrics receives route calculation and playback measurements
type RouteMetrics interface {
	CalculationInc(outcome string)
	ProviderObserve(provider string, d time.Duration)
	EventPublished(err error)
	PlaybackSet(segments, cursor int)
}

// EventPublisher announces completed calculations
type EventPublisher interface {
	PublishRouteCalculated(ctx context.Context, event domain.RouteCalculatedEvent) error
}

// HomeStopID identifies a home picked as a raw coordinate
const HomeStopID = "home"

// CalculateInput names the selected stops by id. The home is either a
// coordinate picked on the map (HomeLocation) or a catalog id (Home);
// HomeLocation wins when both are set.
type CalculateInput struct {
	Home         string
	HomeLocation *domain.GeoCoordinate
	Stops        []string
	Avoid        []domain.Avoid
	Optimize     bool
}

func (in CalculateInput) homeLabel() string {
	if in.HomeLocation != nil {
		return in.HomeLocation.String()
	}
	return in.Home
}

// Calculation is the result of a successful route calculation
type Calculation struct {
	Provider string              `json:"provider"`
	Request  domain.RouteRequest `json:"request"`
	Playback PlaybackState       `json:"playback"`
}

// RouteService runs route calculations against the configured provider
// and owns the playback state they produce
type RouteService struct {
	catalog      *SchoolCatalog
	provider     RouteProvider
	playback     *PlaybackController
	publisher    EventPublisher
	metrics      RouteMetrics
	logger       *slog.Logger
	defaultAvoid []domain.Avoid

	inFlight atomic.Bool
	wgBg     sync.WaitGroup // tracks background event publishing for graceful shutdown
}

// RouteServiceOption customizes a RouteService
type RouteServiceOption func(*RouteService)

// WithPublisher sets the event publisher
func WithPublisher(p EventPublisher) RouteServiceOption {
	return func(s *RouteService) { s.publisher = p }
}

// WithMetrics sets the metrics sink
func WithMetrics(m RouteMetrics) RouteServiceOption {
	return func(s *RouteService) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) RouteServiceOption {
	return func(s *RouteService) { s.logger = l }
}

// WithDefaultAvoid sets the avoid list used when a request names none
func WithDefaultAvoid(avoid ...domain.Avoid) RouteServiceOption {
	return func(s *RouteService) { s.defaultAvoid = avoid }
}

// NewRouteService creates a new route service
func NewRouteService(catalog *SchoolCatalog, provider RouteProvider, opts ...RouteServiceOption) *RouteService {
	s := &RouteService{
		catalog:  catalog,
		provider: provider,
		playback: NewPlaybackController(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProviderName returns the name of the configured provider
func (s *RouteService) ProviderName() string {
	return s.provider.Name()
}

// WaitBackground blocks until all background publish goroutines complete.
// Call during graceful shutdown to avoid dropped events.
func (s *RouteService) WaitBackground() {
	s.wgBg.Wait()
}

// Calculate builds a request from the selection, calls the provider,
// normalizes the response and replaces the playback state. Only one
// calculation runs at a time; a concurrent call fails with
// domain.ErrCalculationInProgress. On any failure the previous playback
// state is left as it was.
func (s *RouteService) Calculate(ctx context.Context, in CalculateInput) (Calculation, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.observeCalculation(domain.ErrCalculationInProgress)
		return Calculation{}, domain.ErrCalculationInProgress
	}
	defer s.inFlight.Store(false)

	logger := logging.FromContext(ctx, s.logger)

	calc, err := s.calculate(ctx, in)
	s.observeCalculation(err)
	if err != nil {
		logging.LogError(logger, "route calculation failed", err,
			slog.String("provider", s.provider.Name()),
			slog.String("home", in.homeLabel()),
			slog.Int("stops", len(in.Stops)))
		return Calculation{}, err
	}

	logging.LogOperation(logger, "route_calculated",
		slog.String("provider", calc.Provider),
		slog.Int("segments", calc.Playback.Len()),
		slog.Float64("distance_meters", TotalDistanceMeters(calc.Playback.Segments)))

	s.publishAsync(in, calc)
	return calc, nil
}

func (s *RouteService) calculate(ctx context.Context, in CalculateInput) (Calculation, error) {
	home, err := s.resolveHome(in)
	if err != nil {
		return Calculation{}, err
	}

	stops, err := s.catalog.Resolve(in.Stops)
	if err != nil {
		return Calculation{}, err
	}

	avoid := in.Avoid
	if len(avoid) == 0 {
		avoid = s.defaultAvoid
	}

	req, err := BuildRouteRequest(home, stops, WithAvoid(avoid...), WithOptimizeWaypointOrder(in.Optimize))
	if err != nil {
		return Calculation{}, err
	}

	raw, err := s.computeRoute(ctx, req)
	if err != nil {
		return Calculation{}, err
	}

	resp, err := DecodeRouteResponse(raw)
	if err != nil {
		return Calculation{}, err
	}

	segments, err := Normalize(resp)
	if err != nil {
		return Calculation{}, err
	}

	state := s.playback.Reset(segments)
	s.observePlayback(state)

	return Calculation{
		Provider: s.provider.Name(),
		Request:  req,
		Playback: state,
	}, nil
}

// resolveHome returns nil when no home was given
func (s *RouteService) resolveHome(in CalculateInput) (*domain.Stop, error) {
	if in.HomeLocation != nil {
		coord, err := domain.NewGeoCoordinate(in.HomeLocation.Latitude, in.HomeLocation.Longitude)
		if err != nil {
			return nil, err
		}
		return &domain.Stop{ID: HomeStopID, Coordinate: coord}, nil
	}
	if in.Home == "" {
		return nil, nil
	}
	home, err := s.catalog.Lookup(in.Home)
	if err != nil {
		return nil, err
	}
	return &home, nil
}

// Proxy forwards a prepared request to the provider and returns the raw
// body untouched. The configured avoid set applies when req has none.
// A response without any route fails with domain.ErrEmptyRoute.
func (s *RouteService) Proxy(ctx context.Context, req domain.RouteRequest) ([]byte, error) {
	if len(req.Avoid) == 0 && len(s.defaultAvoid) > 0 {
		req.Avoid = append([]domain.Avoid(nil), s.defaultAvoid...)
	}

	raw, err := s.computeRoute(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := DecodeRouteResponse(raw)
	if err != nil {
		return nil, err
	}
	if IsEmptyResponse(resp) {
		return nil, domain.ErrEmptyRoute
	}

	return raw, nil
}

// IsEmptyResponse reports whether a decoded response carries no route
func IsEmptyResponse(resp domain.RouteResponse) bool {
	switch resp.Shape {
	case domain.ShapeLegSteps:
		return len(resp.Legs) == 0
	case domain.ShapeFlatCoordinates:
		return resp.Flat == nil
	default:
		return true
	}
}

func (s *RouteService) computeRoute(ctx context.Context, req domain.RouteRequest) ([]byte, error) {
	start := time.Now()
	raw, err := s.provider.ComputeRoute(ctx, req)
	if s.metrics != nil {
		s.metrics.ProviderObserve(s.provider.Name(), time.Since(start))
	}
	return raw, err
}

// Playback returns the current playback state
func (s *RouteService) Playback() PlaybackState {
	return s.playback.State()
}

// Advance reveals the next segment
func (s *RouteService) Advance() PlaybackState {
	state := s.playback.Advance()
	s.observePlayback(state)
	return state
}

// Rewind hides the last revealed segment
func (s *RouteService) Rewind() PlaybackState {
	state := s.playback.Rewind()
	s.observePlayback(state)
	return state
}

// Restart hides every segment of the current route
func (s *RouteService) Restart() PlaybackState {
	state := s.playback.Restart()
	s.observePlayback(state)
	return state
}

func (s *RouteService) observePlayback(state PlaybackState) {
	if s.metrics != nil {
		s.metrics.PlaybackSet(state.Len(), state.Cursor)
	}
}

func (s *RouteService) observeCalculation(err error) {
	if s.metrics != nil {
		s.metrics.CalculationInc(ErrorKind(err))
	}
}

func (s *RouteService) publishAsync(in CalculateInput, calc Calculation) {
	if s.publisher == nil {
		return
	}

	event := domain.RouteCalculatedEvent{
		Provider:       calc.Provider,
		Home:           in.homeLabel(),
		Stops:          append([]string(nil), in.Stops...),
		Segments:       calc.Playback.Len(),
		DistanceMeters: TotalDistanceMeters(calc.Playback.Segments),
	}
	for _, seg := range calc.Playback.Segments {
		event.Colors = append(event.Colors, seg.Color)
	}

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.publisher.PublishRouteCalculated(bgCtx, event)
		if s.metrics != nil {
			s.metrics.EventPublished(err)
		}
		if err != nil {
			logging.LogError(s.logger, "failed to publish route event", err)
		}
	}()
}

// ErrorKind maps an error to a short label for metrics and logs
func ErrorKind(err error) string {
	var rateErr *domain.RateLimitError
	var providerErr *domain.ProviderRequestError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCalculationInProgress):
		return "busy"
	case errors.Is(err, domain.ErrMissingHome):
		return "missing_home"
	case errors.Is(err, domain.ErrInsufficientStops):
		return "insufficient_stops"
	case errors.Is(err, domain.ErrUnknownStop):
		return "unknown_stop"
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &providerErr):
		return "provider_error"
	case errors.Is(err, domain.ErrEmptyRoute):
		return "empty_route"
	case errors.Is(err, domain.ErrMalformedGeometry):
		return "malformed_geometry"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
