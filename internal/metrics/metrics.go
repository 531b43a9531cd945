package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    bookletsWritten = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletizer",
            Name:      "booklets_written_total",
            Help:      "Booklets written by binding",
        },
        []string{"binding"},
    )

    sheetSides = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "bookletizer",
            Name:      "sheet_sides_total",
            Help:      "Sheet-sides laid out",
        },
    )

    slotsPlaced = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletizer",
            Name:      "slots_total",
            Help:      "Page slots placed, labeled page or blank",
        },
        []string{"kind"},
    )

    renderLatency = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "bookletizer",
            Name:      "page_render_duration_seconds",
            Help:      "Duration of rasterizing one source page",
            Buckets:   prometheus.DefBuckets,
        },
    )

    jobsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletizer",
            Name:      "jobs_processed_total",
            Help:      "Total jobs processed by result (success, failed, cancelled, dlq)",
        },
        []string{"result"},
    )

    retriesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "bookletizer",
            Name:      "retries_total",
            Help:      "Total number of job retries",
        },
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "bookletizer",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream and dlq",
        },
        []string{"type"},
    )

    once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    once.Do(func() {
        prometheus.MustRegister(bookletsWritten, sheetSides, slotsPlaced, renderLatency, jobsProcessed, retriesTotal, queueDepth)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncBooklet(binding string) { bookletsWritten.WithLabelValues(binding).Inc() }

func AddSheetSides(n int) { sheetSides.Add(float64(n)) }

func IncSlot(blank bool) {
    if blank {
        slotsPlaced.WithLabelValues("blank").Inc()
        return
    }
    slotsPlaced.WithLabelValues("page").Inc()
}

func ObserveRender(d time.Duration) { renderLatency.Observe(d.Seconds()) }

func IncProcessed(result string) { jobsProcessed.WithLabelValues(result).Inc() }
func IncRetry()                  { retriesTotal.Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
