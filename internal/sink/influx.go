package sink

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ptustress/internal/telemetry"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxMeasurement is the measurement name of exported telemetry points.
const InfluxMeasurement = "ptu_telemetry"

// InfluxConfig locates the bucket telemetry is written to.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether an InfluxDB URL was configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Validate checks that every field needed to write is set.
func (c InfluxConfig) Validate() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "url")
	}
	if c.Org == "" {
		missing = append(missing, "org")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("influxdb configuration is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes telemetry series to InfluxDB with the blocking write API.
type Influx struct {
	client influxdb2.Client
	writer pointWriter
	cfg    InfluxConfig
}

// NewInflux connects to InfluxDB and checks its health.
func NewInflux(ctx context.Context, cfg InfluxConfig) (*Influx, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		slog.Error("Failed to connect to InfluxDB", slog.String("url", cfg.URL), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to influxdb at %s: %w", cfg.URL, err)
	}
	if health.Status != "pass" {
		client.Close()
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("influxdb at %s is not healthy: %s %s", cfg.URL, health.Status, message)
	}
	slog.Info("Connected to InfluxDB", slog.String("url", cfg.URL), slog.String("org", cfg.Org), slog.String("bucket", cfg.Bucket))
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:    cfg,
	}, nil
}

// Close releases the client.
func (i *Influx) Close() {
	if i != nil && i.client != nil {
		i.client.Close()
	}
}

// WriteSeries writes one point per sample. Samples are timestamped start + n*interval,
// n counting from zero. Numeric samples are written to the "value" field, others to "raw".
func (i *Influx) WriteSeries(ctx context.Context, target string, runID string, series []telemetry.Series, start time.Time, interval time.Duration) error {
	points := seriesPoints(target, runID, series, start, interval)
	if len(points) == 0 {
		return nil
	}
	if err := i.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %d telemetry points: %w", len(points), err)
	}
	slog.Info("telemetry written to InfluxDB", slog.String("target", target), slog.Int("points", len(points)))
	return nil
}

func seriesPoints(target string, runID string, series []telemetry.Series, start time.Time, interval time.Duration) []*write.Point {
	var points []*write.Point
	for _, s := range series {
		for n, value := range s.Values {
			fields := map[string]any{}
			if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				fields["value"] = f
			} else {
				fields["raw"] = value
			}
			points = append(points, influxdb2.NewPoint(InfluxMeasurement,
				map[string]string{
					"target": target,
					"device": s.Device,
					"column": s.Column,
					"run_id": runID,
				},
				fields,
				start.Add(time.Duration(n)*interval)))
		}
	}
	return points
}
