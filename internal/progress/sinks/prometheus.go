package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/tgc-rag/internal/progress"
)

// PrometheusSink exports ingest progress as Prometheus collectors: run
// lifecycle, per-site fetch outcomes, and chunk throughput.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	sitemapURLs   prometheus.Counter
	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	chunksWritten *prometheus.CounterVec

	mu     sync.Mutex
	active map[[16]byte]struct{}
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgcrag_ingest_runs_started_total",
			Help: "Ingest runs that have started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_ingest_runs_finished_total",
			Help: "Ingest runs finished, partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tgcrag_ingest_runs_active",
			Help: "Ingest runs currently in flight.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgcrag_ingest_run_duration_seconds",
			Help:    "Wall time per finished ingest run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"result"}),
		sitemapURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgcrag_ingest_sitemap_urls_total",
			Help: "Candidate article URLs resolved from sitemaps.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_ingest_fetches_total",
			Help: "Article fetches, partitioned by site, outcome and status class.",
		}, []string{"site", "outcome", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_ingest_fetch_bytes_total",
			Help: "Article bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgcrag_ingest_fetch_duration_seconds",
			Help:    "Article fetch latency per site.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"site"}),
		chunksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_ingest_chunks_written_total",
			Help: "Chunks written to the collection, partitioned by write mode.",
		}, []string{"mode"}),
		active: make(map[[16]byte]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted, s.runsFinished, s.runsActive, s.runDuration, s.sitemapURLs,
		s.fetches, s.fetchBytes, s.fetchDuration, s.chunksWritten,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			if s.track(evt.RunID, true) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone, progress.StageRunCancelled, progress.StageRunError:
			result := runResult(evt)
			s.runsFinished.WithLabelValues(result).Inc()
			if evt.Dur > 0 {
				s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
			}
			if s.track(evt.RunID, false) {
				s.runsActive.Dec()
			}
		case progress.StageSitemapDone:
			s.sitemapURLs.Add(float64(evt.Items))
		case progress.StageFetchDone:
			s.observeFetch(evt)
		case progress.StageIndexed:
			s.chunksWritten.WithLabelValues("rebuild").Add(float64(evt.Items))
		case progress.StageCheckpoint:
			s.chunksWritten.WithLabelValues("checkpoint").Add(float64(evt.Items))
		}
	}
	return nil
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	class := string(evt.StatusClass)
	if class == "" {
		class = string(progress.StatusOther)
	}
	s.fetches.WithLabelValues(site, string(evt.Outcome), class).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site).Observe(evt.Dur.Seconds())
	}
}

// track records run start/finish and reports whether the active set changed.
func (s *PrometheusSink) track(id [16]byte, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	if start {
		if ok {
			return false
		}
		s.active[id] = struct{}{}
		return true
	}
	if !ok {
		return false
	}
	delete(s.active, id)
	return true
}

func runResult(evt progress.Event) string {
	switch evt.Stage {
	case progress.StageRunCancelled:
		return "cancelled"
	case progress.StageRunError:
		return "error"
	}
	if evt.Note == progress.NoteDryRun {
		return "dry_run"
	}
	return "completed"
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
