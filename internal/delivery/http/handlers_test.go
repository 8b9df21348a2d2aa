package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/logging"
	"github.com/schoolroute/backend/internal/metrics"
	"github.com/schoolroute/backend/internal/polyline"
	"github.com/schoolroute/backend/internal/repository/postgres"
	"github.com/schoolroute/backend/internal/service"
)

// upstream fakes the computeRoutes API; status and body can be swapped per test
type upstream struct {
	server   *httptest.Server
	status   atomic.Int32
	body     atomic.Value
	calls    atomic.Int32
	received atomic.Value // last request body
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{}
	u.status.Store(http.StatusOK)
	u.body.Store(routeBody(3))
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		u.received.Store(b)
		w.WriteHeader(int(u.status.Load()))
		_, _ = w.Write([]byte(u.body.Load().(string)))
	}))
	t.Cleanup(u.server.Close)
	return u
}

// routeBody returns a computeRoutes body with n two-point legs
func routeBody(n int) string {
	legs := make([]string, n)
	for i := range legs {
		path := []domain.GeoCoordinate{
			{Latitude: 43.2 + float64(i)*0.01, Longitude: 76.9},
			{Latitude: 43.21 + float64(i)*0.01, Longitude: 76.91},
		}
		legs[i] = `{"steps": [{"polyline": {"encodedPolyline": "` + polyline.Encode(path) + `"}}]}`
	}
	return `{"routes": [{"legs": [` + strings.Join(legs, ",") + `]}]}`
}

type testEnv struct {
	app      *fiber.App
	upstream *upstream
	routes   *service.RouteService
}

func setupTestApp(t *testing.T, opts ...service.RouteServiceOption) *testEnv {
	t.Helper()
	return setupTestAppWithLogger(t, logging.NewStructuredLogger(io.Discard, slog.LevelError), opts...)
}

func setupTestAppWithLogger(t *testing.T, logger *slog.Logger, opts ...service.RouteServiceOption) *testEnv {
	t.Helper()

	up := newUpstream(t)

	catalog := service.NewSchoolCatalog(postgres.NewMockRepository())
	require.NoError(t, catalog.Load(context.Background()))

	provider := service.NewGoogleRoutesProvider(service.ProviderConfig{BaseURL: up.server.URL, APIKey: "k"})
	routes := service.NewRouteService(catalog, provider, append([]service.RouteServiceOption{service.WithLogger(logger)}, opts...)...)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(app, NewHandler(routes, catalog, logger), metrics.NewCollector().Handler())

	return &testEnv{app: app, upstream: up, routes: routes}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "google", body["provider"])
	assert.Equal(t, 4.0, body["schools"])
}

func TestListAndNearbySchools(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/schools", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4.0, body["count"])

	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/schools/nearby?lat=43.2567&lng=76.9286&k=2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2.0, body["count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "School No. 12", first["id"])

	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/schools/nearby?lat=43.2", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/schools/nearby?lat=95&lng=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, q := range []string{"lat=abc&lng=abc", "lat=43.2&lng=east", "lat=north&lng=76.9"} {
		resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/schools/nearby?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Contains(t, body["message"], "must be a number", q)
	}
}

func TestCalculateRouteAndPlayback(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/routes", CalculateRouteRequest{
		HomeLocation: latLng(43.25, 76.90),
		Stops:        []string{"School No. 12", "Lyceum No. 165"},
		Avoid:        []string{"tolls"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	data := body["data"].(map[string]any)
	playback := data["playback"].(map[string]any)
	assert.Len(t, playback["segments"], 3)
	assert.Equal(t, 0.0, playback["cursor"])
	request := data["request"].(map[string]any)
	assert.Equal(t, []any{"TOLLS"}, request["avoid"])
	assert.Equal(t, map[string]any{"lat": 43.25, "lng": 76.90}, request["origin"])
	assert.Equal(t, request["origin"], request["destination"])

	for want := 1; want <= 3; want++ {
		_, body = doJSON(t, env.app, http.MethodPost, "/api/v1/playback/advance", nil)
		assert.Equal(t, float64(want), body["active_count"])
	}
	_, body = doJSON(t, env.app, http.MethodPost, "/api/v1/playback/advance", nil)
	assert.Equal(t, 3.0, body["active_count"])
	assert.Equal(t, false, body["can_advance"])

	_, body = doJSON(t, env.app, http.MethodPost, "/api/v1/playback/rewind", nil)
	assert.Equal(t, 2.0, body["active_count"])

	_, body = doJSON(t, env.app, http.MethodGet, "/api/v1/playback", nil)
	segments := body["data"].(map[string]any)["segments"].([]any)
	assert.Equal(t, true, segments[1].(map[string]any)["active"])
	assert.Equal(t, false, segments[2].(map[string]any)["active"])

	_, body = doJSON(t, env.app, http.MethodPost, "/api/v1/playback/reset", nil)
	assert.Equal(t, 0.0, body["active_count"])
	assert.Equal(t, false, body["can_rewind"])
}

func TestCalculateRouteErrors(t *testing.T) {
	env := setupTestApp(t)
	stops := []string{"School No. 12", "Lyceum No. 165"}
	home := latLng(43.2389, 76.8897)

	tests := []struct {
		name     string
		req      CalculateRouteRequest
		status   int
		body     string
		upstream int32
	}{
		{"missing home", CalculateRouteRequest{Stops: stops}, http.StatusBadRequest, routeBody(3), http.StatusOK},
		{"one stop", CalculateRouteRequest{HomeLocation: home, Stops: stops[:1]}, http.StatusBadRequest, routeBody(3), http.StatusOK},
		{"unknown school", CalculateRouteRequest{HomeLocation: home, Stops: []string{"Atlantis", "School No. 12"}}, http.StatusNotFound, routeBody(3), http.StatusOK},
		{"unknown home name", CalculateRouteRequest{Home: "Home", Stops: stops}, http.StatusNotFound, routeBody(3), http.StatusOK},
		{"home out of range", CalculateRouteRequest{HomeLocation: latLng(91, 76.9), Stops: stops}, http.StatusBadRequest, routeBody(3), http.StatusOK},
		{"home missing lng", CalculateRouteRequest{HomeLocation: &LatLng{Lat: home.Lat}, Stops: stops}, http.StatusBadRequest, routeBody(3), http.StatusOK},
		{"bad avoid", CalculateRouteRequest{HomeLocation: home, Stops: stops, Avoid: []string{"potholes"}}, http.StatusBadRequest, routeBody(3), http.StatusOK},
		{"empty route", CalculateRouteRequest{HomeLocation: home, Stops: stops}, http.StatusUnprocessableEntity, `{}`, http.StatusOK},
		{"throttled", CalculateRouteRequest{HomeLocation: home, Stops: stops}, http.StatusTooManyRequests, `{}`, http.StatusTooManyRequests},
		{"provider down", CalculateRouteRequest{HomeLocation: home, Stops: stops}, http.StatusBadGateway, `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.upstream.body.Store(tt.body)
			env.upstream.status.Store(tt.upstream)

			resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/routes", tt.req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestProxyCalculateRoute(t *testing.T) {
	env := setupTestApp(t)

	origin := map[string]float64{"lat": 43.2389, "lng": 76.8897}
	payload := map[string]any{
		"origin":      origin,
		"destination": origin,
		"waypoints": []any{
			map[string]any{"location": map[string]float64{"lat": 43.2567, "lng": 76.9286}},
			map[string]any{"location": map[string]float64{"lat": 43.2380, "lng": 76.9450}},
		},
	}

	t.Run("passes provider json through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/calculate-route", bytes.NewReader(mustJSON(t, payload)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, routeBody(3), string(raw))
		assert.Equal(t, 0, env.routes.Playback().Len(), "proxy must not touch playback")
	})

	t.Run("missing destination", func(t *testing.T) {
		resp, body := doJSON(t, env.app, http.MethodPost, "/calculate-route", map[string]any{"origin": origin})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("invalid waypoint", func(t *testing.T) {
		bad := map[string]any{
			"origin":      origin,
			"destination": origin,
			"waypoints":   []any{map[string]any{"location": map[string]float64{"lat": 120}}},
		}
		resp, _ := doJSON(t, env.app, http.MethodPost, "/calculate-route", bad)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("empty route set", func(t *testing.T) {
		env.upstream.body.Store(`{"routes": []}`)
		defer env.upstream.body.Store(routeBody(3))

		resp, body := doJSON(t, env.app, http.MethodPost, "/calculate-route", payload)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "No routes found", body["error"])
	})

	t.Run("provider failure", func(t *testing.T) {
		env.upstream.status.Store(http.StatusInternalServerError)
		defer env.upstream.status.Store(http.StatusOK)

		resp, body := doJSON(t, env.app, http.MethodPost, "/calculate-route", payload)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body["error"], "status 500")
	})
}

func TestCalculateRouteByHomeName(t *testing.T) {
	env := setupTestApp(t)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/routes", CalculateRouteRequest{
		Home:  "School No. 35",
		Stops: []string{"School No. 12", "Lyceum No. 165"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	request := body["data"].(map[string]any)["request"].(map[string]any)
	assert.Equal(t, map[string]any{"lat": 43.2220, "lng": 76.8510}, request["origin"])
}

func TestProxyAppliesConfiguredAvoid(t *testing.T) {
	env := setupTestApp(t, service.WithDefaultAvoid(domain.AvoidTolls, domain.AvoidFerries))

	origin := map[string]float64{"lat": 43.2389, "lng": 76.8897}
	resp, _ := doJSON(t, env.app, http.MethodPost, "/calculate-route", map[string]any{
		"origin":      origin,
		"destination": origin,
		"waypoints": []any{
			map[string]any{"location": map[string]float64{"lat": 43.2567, "lng": 76.9286}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sent struct {
		RouteModifiers map[string]bool `json:"routeModifiers"`
	}
	require.NoError(t, json.Unmarshal(env.upstream.received.Load().([]byte), &sent))
	assert.Equal(t, map[string]bool{"avoidTolls": true, "avoidFerries": true}, sent.RouteModifiers)
}

func TestRequestLoggerScopesServiceLogs(t *testing.T) {
	var buf bytes.Buffer
	env := setupTestAppWithLogger(t, logging.NewStructuredLogger(&buf, slog.LevelInfo))
	env.upstream.body.Store(`{}`)

	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/v1/routes", CalculateRouteRequest{
		HomeLocation: latLng(43.2389, 76.8897),
		Stops:        []string{"School No. 12", "Lyceum No. 165"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var failure map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "route calculation failed" {
			failure = entry
		}
	}
	require.NotNil(t, failure, buf.String())
	assert.Equal(t, "POST", failure["method"])
	assert.Equal(t, "/api/v1/routes", failure["path"])
	assert.Equal(t, "(43.238900, 76.889700)", failure["home"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(domain.ErrCalculationInProgress))
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.ErrInvalidCoordinate))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(domain.ErrMalformedGeometry))
	assert.Equal(t, http.StatusBadGateway, StatusFor(domain.ErrMalformedResponse))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusTeapot, StatusFor(fiber.NewError(http.StatusTeapot)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}

func latLng(lat, lng float64) *LatLng {
	return &LatLng{Lat: &lat, Lng: &lng}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
