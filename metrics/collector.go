// Package metrics records corrective RAG runs as Prometheus metrics. The
// Collector is a graph.TraceHook.
package metrics

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
	"github.com/smallnest/crag/graph"
	"github.com/smallnest/crag/rag/cache"
)

// Namespace prefixes every metric name.
const Namespace = "crag"

// NodeStat aggregates the latencies of one node.
type NodeStat struct {
	Node  string
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Avg returns the mean latency.
func (s NodeStat) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Collector turns trace spans into metrics.
type Collector struct {
	nodeDuration *prometheus.HistogramVec
	nodeErrors   *prometheus.CounterVec
	edges        *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer

	mu    sync.Mutex
	stats map[string]*NodeStat
}

var _ graph.TraceHook = (*Collector)(nil)

// NewCollector registers the metrics on reg. A nil reg uses a fresh
// registry, which keeps repeated constructions in tests independent.
// WriteText needs reg to also be a prometheus.Gatherer, as
// *prometheus.Registry is.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer, _ := reg.(prometheus.Gatherer)
	factory := promauto.With(reg)

	return &Collector{
		registerer: reg,
		gatherer:   gatherer,
		stats:      make(map[string]*NodeStat),

		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "node_duration_seconds",
				Help:      "Graph node execution time in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"node", "status"},
		),
		nodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "node_errors_total",
				Help:      "Total number of failed node executions",
			},
			[]string{"node"},
		),
		edges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "edge_traversals_total",
				Help:      "Total number of edge traversals, including routing decisions",
			},
			[]string{"from", "to"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total number of graph invocations",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Graph invocation time in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

// OnEvent implements graph.TraceHook.
func (c *Collector) OnEvent(_ context.Context, span *graph.TraceSpan) {
	switch span.Event {
	case graph.TraceEventNodeEnd:
		c.nodeDuration.WithLabelValues(span.NodeName, "success").Observe(span.Duration.Seconds())
		c.record(span.NodeName, span.Duration)
	case graph.TraceEventNodeError:
		c.nodeDuration.WithLabelValues(span.NodeName, "error").Observe(span.Duration.Seconds())
		c.nodeErrors.WithLabelValues(span.NodeName).Inc()
	case graph.TraceEventEdgeTraversal:
		c.edges.WithLabelValues(span.FromNode, span.ToNode).Inc()
	case graph.TraceEventGraphEnd:
		status := "success"
		if span.Error != nil {
			status = "error"
		}
		c.runsTotal.WithLabelValues(status).Inc()
		c.runDuration.Observe(span.Duration.Seconds())
	}
}

func (c *Collector) record(node string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[node]
	if !ok {
		s = &NodeStat{Node: node, Min: d, Max: d}
		c.stats[node] = s
	}
	s.Count++
	s.Total += d
	s.Min = min(s.Min, d)
	s.Max = max(s.Max, d)
}

// NodeStats returns the successful-execution latencies per node, sorted by
// node name.
func (c *Collector) NodeStats() []NodeStat {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]NodeStat, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Reset clears the latency aggregates. Prometheus series are kept.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.stats)
}

// ErrNoGatherer is returned by WriteText when the registerer given to
// NewCollector cannot be gathered.
var ErrNoGatherer = errors.New("metrics: registerer is not a gatherer")

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	if c.gatherer == nil {
		return ErrNoGatherer
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// CacheStatsSource reports embedding cache counters.
type CacheStatsSource interface {
	Stats() cache.Stats
}

// RegisterCache exports the hit and miss counters of an embedding cache.
func (c *Collector) RegisterCache(src CacheStatsSource) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_cache_hits_total",
		Help:      "Embedding lookups served from the cache",
	}, func() float64 { return float64(src.Stats().Hits) })
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "embedding_cache_misses_total",
		Help:      "Embedding lookups that called the embedding model",
	}, func() float64 { return float64(src.Stats().Misses) })

	if err := c.registerer.Register(hits); err != nil {
		return err
	}
	return c.registerer.Register(misses)
}
