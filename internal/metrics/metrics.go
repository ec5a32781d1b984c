// Package metrics exposes Prometheus instrumentation for sessions and the
// simulated conversion and upload jobs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job results.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCanceled = "canceled"
	ResultRejected = "rejected"
)

var (
	SessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agenti_sessions_open",
		Help: "Number of open page-view sessions",
	})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agenti_sessions_opened_total",
		Help: "Total number of page-view sessions opened",
	})

	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agenti_conversions_total",
		Help: "Total number of conversion jobs by result",
	}, []string{"result"})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agenti_conversion_duration_seconds",
		Help:    "Duration of conversion jobs",
		Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
	})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agenti_uploads_total",
		Help: "Total number of upload jobs by result",
	}, []string{"result"})

	UploadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agenti_upload_rejections_total",
		Help: "Total number of files rejected before an upload started",
	}, []string{"reason"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	default:
		return ResultError
	}
}

type converter struct {
	next controller.Converter
}

// InstrumentConverter counts and times conversions made through c.
func InstrumentConverter(c controller.Converter) controller.Converter {
	return converter{next: c}
}

func (c converter) Convert(ctx context.Context, source string) (string, error) {
	start := time.Now()
	out, err := c.next.Convert(ctx, source)
	ConversionDuration.Observe(time.Since(start).Seconds())
	Conversions.WithLabelValues(result(err)).Inc()
	return out, err
}

type uploader struct {
	next controller.Uploader
}

// InstrumentUploader counts uploads made through u.
func InstrumentUploader(u controller.Uploader) controller.Uploader {
	return uploader{next: u}
}

func (u uploader) Upload(ctx context.Context, file controller.FileRef) (controller.Receipt, error) {
	receipt, err := u.next.Upload(ctx, file)
	res := result(err)
	if err == nil && !receipt.Accepted {
		res = ResultRejected
	}
	Uploads.WithLabelValues(res).Inc()
	return receipt, err
}

// RejectionReason maps a pre-upload rejection to a metric label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, controller.ErrUploadInFlight):
		return "in_flight"
	case errors.Is(err, controller.ErrDisallowedType):
		return "type"
	case errors.Is(err, controller.ErrFileTooLarge):
		return "size"
	default:
		return "other"
	}
}
