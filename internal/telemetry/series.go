package telemetry

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Series is one column of one device.
type Series struct {
	Device string
	Column string
	Values []string
}

// Stats summarizes a numeric series.
type Stats struct {
	Min   float64
	Max   float64
	Avg   float64
	First float64
	Last  float64
	Count int
}

// Floats converts the series values to float64. PTU writes "N/A" for readings that are
// unavailable on a platform, which is reported as an error like any other non-number.
func (s Series) Floats() ([]float64, error) {
	floats := make([]float64, 0, len(s.Values))
	for i, value := range s.Values {
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s sample %d", s.Device, s.Column, i+1)
		}
		floats = append(floats, f)
	}
	return floats, nil
}

// Stats returns the summary statistics of the series. An empty series is an error.
func (s Series) Stats() (Stats, error) {
	floats, err := s.Floats()
	if err != nil {
		return Stats{}, err
	}
	if len(floats) == 0 {
		return Stats{}, errors.Errorf("%s %s has no samples", s.Device, s.Column)
	}
	stats := Stats{
		Min:   floats[0],
		Max:   floats[0],
		First: floats[0],
		Last:  floats[len(floats)-1],
		Count: len(floats),
	}
	var sum float64
	for _, f := range floats {
		stats.Min = min(stats.Min, f)
		stats.Max = max(stats.Max, f)
		sum += f
	}
	stats.Avg = sum / float64(len(floats))
	return stats, nil
}
