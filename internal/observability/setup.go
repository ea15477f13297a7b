package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Audit is the structured admin audit logger. Moderator actions go here
	// in addition to the durable admin_logs table.
	Audit *zap.Logger

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updates_processed_total",
			Help: "Total number of inbound updates processed",
		},
		[]string{"outcome"},
	)

	confessionsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confessions_delivered_total",
			Help: "Total number of confessions delivered",
		},
	)

	bansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bans_issued_total",
			Help: "Total number of bans issued",
		},
		[]string{"kind"},
	)

	updateHandlingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_handling_duration_seconds",
			Help:    "Time spent handling one inbound update",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Audit, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(updatesTotal)
	prometheus.MustRegister(confessionsDeliveredTotal)
	prometheus.MustRegister(bansTotal)
	prometheus.MustRegister(updateHandlingDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordUpdate counts one processed update by outcome (handled, skipped,
// banned, maintenance, error).
func RecordUpdate(outcome string) {
	updatesTotal.WithLabelValues(outcome).Inc()
}

// RecordDelivery counts one delivered confession.
func RecordDelivery() {
	confessionsDeliveredTotal.Inc()
}

// RecordBan counts an issued ban; kind is manual, automatic or report.
func RecordBan(kind string) {
	bansTotal.WithLabelValues(kind).Inc()
}

// StartUpdateTimer returns a closure recording the handling duration under
// the final status.
func StartUpdateTimer() func(status string) {
	start := time.Now()
	return func(status string) {
		updateHandlingDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
