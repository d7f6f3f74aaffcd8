/*
Package telemetry parses the PTU monitor CSV log into per-device time series.

The first row of the log names the fields. Every following row holds one sample of one
device: column 0 is the sample index or timestamp, column 1 the device label (e.g. CPU0)
and the remaining columns the readings. Values are kept verbatim as strings.
*/
package telemetry

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

var (
	// ErrDeviceNotFound is returned when a device label is not in the table.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrColumnNotFound is returned when a device's rows have no such column.
	ErrColumnNotFound = errors.New("column not found")
	// ErrMalformedRow is returned when a data row has fewer cells than the header.
	ErrMalformedRow = errors.New("malformed row")
)

const (
	deviceColumn      = 1
	firstReadingIndex = 2
)

// Record maps a column name to the verbatim cell value of one sample.
type Record map[string]string

// Table maps a device label to its samples in file order.
type Table map[string][]Record

// ParseFile reads and parses the CSV log at path.
func ParseFile(path string) (Table, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open telemetry log %s", path)
	}
	defer f.Close()
	table, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse telemetry log %s", path)
	}
	return table, nil
}

// Parse reads a PTU CSV log. Device labels, header names and readings are kept verbatim,
// padding included; only a byte order mark before the header is dropped. A row with fewer
// cells than the header fails the parse with ErrMalformedRow naming its line; cells beyond
// the header are ignored.
func Parse(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("telemetry log is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff") // byte order mark
	if len(header) <= deviceColumn {
		return nil, errors.Wrapf(ErrMalformedRow, "line 1: header has %d fields, need at least %d", len(header), deviceColumn+1)
	}
	table := Table{}
	rows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read row")
		}
		line, _ := reader.FieldPos(0)
		if len(row) < len(header) {
			return nil, errors.Wrapf(ErrMalformedRow, "line %d: %d fields, header has %d", line, len(row), len(header))
		}
		device := row[deviceColumn]
		record := make(Record, len(header)-firstReadingIndex)
		for i := firstReadingIndex; i < len(header); i++ {
			record[header[i]] = row[i]
		}
		table[device] = append(table[device], record)
		rows++
	}
	slog.Debug("parsed telemetry log", slog.Int("rows", rows), slog.Int("devices", len(table)))
	return table, nil
}

// GetColumn parses the log at path and returns the named column of the named device.
func GetColumn(device string, column string, path string) ([]string, error) {
	table, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return table.Column(device, column)
}

// Column returns the values recorded under column for device, in file order.
func (t Table) Column(device string, column string) ([]string, error) {
	records, ok := t[device]
	if !ok {
		return nil, errors.Wrapf(ErrDeviceNotFound, "%q", device)
	}
	values := make([]string, 0, len(records))
	for i, record := range records {
		value, ok := record[column]
		if !ok {
			return nil, errors.Wrapf(ErrColumnNotFound, "%q in sample %d of device %q", column, i+1, device)
		}
		values = append(values, value)
	}
	return values, nil
}

// Series returns the named column of device as a Series.
func (t Table) Series(device string, column string) (Series, error) {
	values, err := t.Column(device, column)
	if err != nil {
		return Series{}, err
	}
	return Series{Device: device, Column: column, Values: values}, nil
}

// Devices returns the device labels, sorted.
func (t Table) Devices() []string {
	devices := make([]string, 0, len(t))
	for device := range t {
		devices = append(devices, device)
	}
	slices.SortFunc(devices, compareLabels)
	return devices
}

// ColumnNames returns the reading columns recorded for device, sorted.
func (t Table) ColumnNames(device string) ([]string, error) {
	records, ok := t[device]
	if !ok {
		return nil, errors.Wrapf(ErrDeviceNotFound, "%q", device)
	}
	names := mapset.NewThreadUnsafeSet[string]()
	for _, record := range records {
		for name := range record {
			names.Add(name)
		}
	}
	columns := names.ToSlice()
	slices.Sort(columns)
	return columns, nil
}

// compareLabels orders labels with a numeric suffix numerically, so CPU2 sorts before CPU10.
func compareLabels(a, b string) int {
	pa, na := splitNumericSuffix(a)
	pb, nb := splitNumericSuffix(b)
	if pa != pb || na == "" || nb == "" {
		return strings.Compare(a, b)
	}
	if len(na) != len(nb) {
		return len(na) - len(nb)
	}
	return strings.Compare(na, nb)
}

func splitNumericSuffix(s string) (prefix string, digits string) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i], strings.TrimLeft(s[i:], "0")
}
