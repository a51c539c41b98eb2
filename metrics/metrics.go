// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/scan"
)

const resultOK = "ok"

// Metrics counts scan workflow events. It is a scan.Observer.
type Metrics struct {
	CameraStarts *prometheus.CounterVec
	Decodes      *prometheus.CounterVec
	Submissions  *prometheus.CounterVec
}

// New registers the scan metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CameraStarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scanpoint_camera_starts_total",
			Help: "Camera start attempts by result",
		}, []string{"result"}),
		Decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scanpoint_decodes_total",
			Help: "QR decodes by result",
		}, []string{"result"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scanpoint_submissions_total",
			Help: "Check-in and check-out submissions by direction and outcome",
		}, []string{"direction", "outcome"}),
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) CameraStarted(err error) {
	m.CameraStarts.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Decoded(err error) {
	m.Decodes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Submitted(dir checkin.Direction, _ models.Checkpoint, res checkin.Result) {
	m.Submissions.WithLabelValues(string(dir), string(res.Outcome)).Inc()
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	return scan.ErrorCode(err)
}
