package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	RouteCalculations *prometheus.CounterVec   // outcome label: ok|<error kind>
	ProviderDuration  *prometheus.HistogramVec // provider label
	EventsPublished   *prometheus.CounterVec   // result label: ok|error

	Segments       prometheus.Gauge
	PlaybackCursor prometheus.Gauge
	Schools        prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RouteCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolroute_route_calculations_total",
			Help: "Route calculations by outcome.",
		}, []string{"outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schoolroute_provider_request_seconds",
			Help:    "Duration of routing provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolroute_events_published_total",
			Help: "Route events published, by result.",
		}, []string{"result"}),
		Segments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolroute_playback_segments",
			Help: "Number of segments in the current playback.",
		}),
		PlaybackCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolroute_playback_cursor",
			Help: "Number of segments currently revealed.",
		}),
		Schools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolroute_schools_loaded",
			Help: "Number of schools in the catalog.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.RouteCalculations,
		c.ProviderDuration,
		c.EventsPublished,
		c.Segments,
		c.PlaybackCursor,
		c.Schools,
	)

	return c
}

// Registry exposes the private registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) CalculationInc(outcome string) {
	c.RouteCalculations.WithLabelValues(outcome).Inc()
}

func (c *Collector) ProviderObserve(provider string, d time.Duration) {
	c.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (c *Collector) EventPublished(err error) {
	if err != nil {
		c.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	c.EventsPublished.WithLabelValues("ok").Inc()
}

func (c *Collector) PlaybackSet(segments, cursor int) {
	c.Segments.Set(float64(segments))
	c.PlaybackCursor.Set(float64(cursor))
}

func (c *Collector) SchoolsSet(n int) {
	c.Schools.Set(float64(n))
}
