// Package sink publishes stress run state and telemetry to external systems:
// a Prometheus scrape endpoint and an InfluxDB bucket.
package sink

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promMetricPrefix = "ptustress_"

// Prometheus holds the gauges published on the /metrics endpoint.
type Prometheus struct {
	registry  *prometheus.Registry
	running   *prometheus.GaugeVec
	last      *prometheus.GaugeVec
	assertion *prometheus.GaugeVec
	server    *http.Server
}

// NewPrometheus creates the gauges in a dedicated registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: promMetricPrefix + "tool_running",
				Help: "1 when the stress tool was found in the target's process table at the last probe",
			},
			[]string{"target"},
		),
		last: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: promMetricPrefix + "telemetry_last",
				Help: "Last numeric sample of a telemetry column",
			},
			[]string{"target", "device", "column"},
		),
		assertion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: promMetricPrefix + "assertion_passed",
				Help: "1 when the assertion on a telemetry column passed, 0 when it failed or could not be evaluated",
			},
			[]string{"target", "device", "column"},
		),
	}
	p.registry.MustRegister(p.running, p.last, p.assertion)
	return p
}

// Start serves the registry at listenAddr/metrics in the background.
func (p *Prometheus) Start(listenAddr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	slog.Info("Starting Prometheus metrics server", slog.String("address", listenAddr))
	p.server = &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() {
		err := p.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Prometheus HTTP server ListenAndServe error", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the server down, if it was started.
func (p *Prometheus) Stop(ctx context.Context) {
	if p == nil || p.server == nil {
		return
	}
	if err := p.server.Shutdown(ctx); err != nil {
		slog.Warn("failed to stop Prometheus metrics server", slog.String("error", err.Error()))
	}
}

// SetRunning records the result of a running probe.
func (p *Prometheus) SetRunning(target string, running bool) {
	if p == nil {
		return
	}
	p.running.WithLabelValues(target).Set(boolToFloat(running))
}

// SetTelemetry records the last numeric sample of each series. Non-numeric series are skipped.
func (p *Prometheus) SetTelemetry(target string, series []telemetry.Series) {
	if p == nil {
		return
	}
	for _, s := range series {
		stats, err := s.Stats()
		if err != nil {
			slog.Debug("not publishing non-numeric series", slog.String("device", s.Device), slog.String("column", s.Column), slog.String("error", err.Error()))
			continue
		}
		p.last.WithLabelValues(target, s.Device, s.Column).Set(stats.Last)
	}
}

// SetAssertions records the outcome of each assertion.
func (p *Prometheus) SetAssertions(target string, results []threshold.Result) {
	if p == nil {
		return
	}
	for _, r := range results {
		p.assertion.WithLabelValues(target, r.Assertion.Device, r.Assertion.Column).Set(boolToFloat(r.Passed))
	}
}

// Handler returns the /metrics handler for the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
