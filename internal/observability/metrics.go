package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query commands used as metric labels.
const (
	CommandInfoCountry = "info_country"
	CommandRoute       = "route"
)

// Query outcomes used as metric labels.
const (
	OutcomeFound       = "found"
	OutcomeSameCountry = "same_country"
	OutcomeNoRoute     = "no_route"
	OutcomeAborted     = "aborted"
	OutcomeError       = "error"
)

// QueryCollector bundles Prometheus metrics for query sessions and the
// loaded dataset.
type QueryCollector struct {
	gatherer prometheus.Gatherer

	Queries        *prometheus.CounterVec
	QueryDurations *prometheus.HistogramVec
	InvalidInputs  *prometheus.CounterVec

	RouteHops prometheus.Histogram
	RouteTax  prometheus.Histogram

	DatasetCountries    prometheus.Gauge
	DatasetBorders      prometheus.Gauge
	DatasetLoadDuration prometheus.Histogram
}

// NewQueryCollector registers query metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewQueryCollector(reg prometheus.Registerer) (*QueryCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapengine_queries_total",
		Help: "Total number of completed queries, labeled by command and outcome.",
	}, []string{"command", "outcome"}), "mapengine_queries_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mapengine_query_duration_seconds",
		Help:    "Query latency in seconds, including time spent waiting for input.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"command"}), "mapengine_query_duration_seconds")
	if err != nil {
		return nil, err
	}

	invalid, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mapengine_invalid_country_inputs_total",
		Help: "Number of country names that were rejected and re-prompted, labeled by command.",
	}, []string{"command"}), "mapengine_invalid_country_inputs_total")
	if err != nil {
		return nil, err
	}

	hops, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapengine_route_hops",
		Help:    "Number of borders crossed by found routes.",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	}), "mapengine_route_hops")
	if err != nil {
		return nil, err
	}

	tax, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapengine_route_tax",
		Help:    "Cumulative border tax of found routes.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 8),
	}), "mapengine_route_tax")
	if err != nil {
		return nil, err
	}

	countries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapengine_dataset_countries",
		Help: "Number of countries in the loaded dataset.",
	}), "mapengine_dataset_countries")
	if err != nil {
		return nil, err
	}
	borders, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mapengine_dataset_borders",
		Help: "Number of directed borders in the loaded dataset.",
	}), "mapengine_dataset_borders")
	if err != nil {
		return nil, err
	}

	load, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mapengine_dataset_load_duration_seconds",
		Help:    "Time spent reading and installing the dataset.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "mapengine_dataset_load_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &QueryCollector{
		gatherer:            gatherer,
		Queries:             queries,
		QueryDurations:      durations,
		InvalidInputs:       invalid,
		RouteHops:           hops,
		RouteTax:            tax,
		DatasetCountries:    countries,
		DatasetBorders:      borders,
		DatasetLoadDuration: load,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *QueryCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *QueryCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveQuery records a completed query.
func (c *QueryCollector) ObserveQuery(command, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Queries != nil {
		c.Queries.WithLabelValues(command, outcome).Inc()
	}
	if c.QueryDurations != nil {
		c.QueryDurations.WithLabelValues(command).Observe(d.Seconds())
	}
}

// IncInvalidInput counts a rejected country name.
func (c *QueryCollector) IncInvalidInput(command string) {
	if c == nil || c.InvalidInputs == nil {
		return
	}
	c.InvalidInputs.WithLabelValues(command).Inc()
}

// ObserveRoute records the shape of a found route.
func (c *QueryCollector) ObserveRoute(hops, tax int) {
	if c == nil {
		return
	}
	if c.RouteHops != nil {
		c.RouteHops.Observe(float64(hops))
	}
	if c.RouteTax != nil {
		c.RouteTax.Observe(float64(tax))
	}
}

// SetDatasetCounts updates the dataset gauges.
func (c *QueryCollector) SetDatasetCounts(countries, borders int) {
	if c == nil {
		return
	}
	if c.DatasetCountries != nil {
		c.DatasetCountries.Set(float64(countries))
	}
	if c.DatasetBorders != nil {
		c.DatasetBorders.Set(float64(borders))
	}
}

// ObserveLoad records a dataset load duration.
func (c *QueryCollector) ObserveLoad(d time.Duration) {
	if c == nil || c.DatasetLoadDuration == nil {
		return
	}
	c.DatasetLoadDuration.Observe(d.Seconds())
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
