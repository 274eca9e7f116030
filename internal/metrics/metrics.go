package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/torspider/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "torspider"

// Metrics holds the crawl collectors. It implements crawler.Observer and
// archive.Observer.
type Metrics struct {
	PagesFetched    *prometheus.CounterVec
	BytesFetched    prometheus.Counter
	FetchFailures   *prometheus.CounterVec
	LinksDiscovered *prometheus.CounterVec
	LinksClaimed    *prometheus.CounterVec
	RecordsArchived prometheus.Counter
	RecordsRejected prometheus.Counter
	FrontierDepth   *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of pages successfully fetched, by route.",
		}, []string{"route"}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_fetched_total",
			Help:      "Total body bytes downloaded.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of failed fetches, by failure kind.",
		}, []string{"kind"}),
		LinksDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_discovered_total",
			Help:      "Links found on fetched pages, by kind.",
		}, []string{"kind"}),
		LinksClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_claimed_total",
			Help:      "Links that passed the dedup gate and were queued, by kind.",
		}, []string{"kind"}),
		RecordsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_archived_total",
			Help:      "Records accepted by the document store.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_rejected_total",
			Help:      "Records refused by the document store.",
		}),
		FrontierDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "frontier_depth",
			Help:      "Entries waiting in the frontier, by queue.",
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{
		m.PagesFetched,
		m.BytesFetched,
		m.FetchFailures,
		m.LinksDiscovered,
		m.LinksClaimed,
		m.RecordsArchived,
		m.RecordsRejected,
		m.FrontierDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveFetch counts a successful fetch.
func (m *Metrics) ObserveFetch(route string, size int) {
	m.PagesFetched.WithLabelValues(route).Inc()
	m.BytesFetched.Add(float64(size))
}

// ObserveFailure counts a failed fetch.
func (m *Metrics) ObserveFailure(kind model.FailureKind) {
	m.FetchFailures.WithLabelValues(kind.String()).Inc()
}

// ObserveLinks counts the links of one kind found on a page.
func (m *Metrics) ObserveLinks(kind model.Kind, discovered, claimed int) {
	m.LinksDiscovered.WithLabelValues(kind.String()).Add(float64(discovered))
	m.LinksClaimed.WithLabelValues(kind.String()).Add(float64(claimed))
}

// ObserveFrontier sets the queue depth gauges.
func (m *Metrics) ObserveFrontier(internal, external int) {
	m.FrontierDepth.WithLabelValues(model.KindInternal.String()).Set(float64(internal))
	m.FrontierDepth.WithLabelValues(model.KindExternal.String()).Set(float64(external))
}

// ObserveFlush counts the outcome of an archive batch.
func (m *Metrics) ObserveFlush(inserted, rejected int) {
	m.RecordsArchived.Add(float64(inserted))
	m.RecordsRejected.Add(float64(rejected))
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return serve(ctx, ln, g, logger)
}

func serve(ctx context.Context, ln net.Listener, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
