package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"

	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Table names
const (
	TableNameRun        = "Stress Run"
	TableNameSummary    = "Telemetry Summary"
	TableNameTelemetry  = "Telemetry"
	TableNameAssertions = "Assertions"
)

// Assertion results
const (
	ResultPass  = "PASS"
	ResultFail  = "FAIL"
	ResultError = "ERROR"
)

// KeyValueTable builds a single-record table, one field per key.
func KeyValueTable(name string, keys []string, values []string) TableValues {
	tableValues := TableValues{Name: name}
	for i, key := range keys {
		var value string
		if i < len(values) {
			value = values[i]
		}
		tableValues.Fields = append(tableValues.Fields, Field{Name: key, Values: []string{value}})
	}
	return tableValues
}

// SeriesTable lays the series out side by side, one column per device column, one row
// per sample. Shorter series are padded with empty values.
func SeriesTable(series []telemetry.Series) TableValues {
	tableValues := TableValues{
		Name:        TableNameTelemetry,
		HasRows:     true,
		NoDataFound: "No telemetry columns selected.",
	}
	if len(series) == 0 {
		return tableValues
	}
	numRows := 0
	for _, s := range series {
		numRows = max(numRows, len(s.Values))
	}
	sample := Field{Name: "Sample"}
	for i := range numRows {
		sample.Values = append(sample.Values, strconv.Itoa(i+1))
	}
	tableValues.Fields = append(tableValues.Fields, sample)
	for _, s := range series {
		field := Field{Name: s.Device + " " + s.Column, Values: make([]string, numRows)}
		copy(field.Values, s.Values)
		tableValues.Fields = append(tableValues.Fields, field)
	}
	return tableValues
}

// SummaryTable summarizes each series. Series that aren't numeric show their sample count only.
func SummaryTable(series []telemetry.Series) TableValues {
	p := message.NewPrinter(language.English) // use printer to get commas at thousands
	tableValues := TableValues{
		Name:        TableNameSummary,
		HasRows:     true,
		NoDataFound: "No telemetry columns selected.",
		Fields: []Field{
			{Name: "Device"},
			{Name: "Column"},
			{Name: "Samples"},
			{Name: "Min"},
			{Name: "Max"},
			{Name: "Avg"},
			{Name: "Last"},
		},
	}
	if len(series) == 0 {
		tableValues.Fields = nil
		return tableValues
	}
	for _, s := range series {
		values := []string{s.Device, s.Column, strconv.Itoa(len(s.Values)), "", "", "", ""}
		if stats, err := s.Stats(); err == nil {
			values[3] = p.Sprintf("%.2f", stats.Min)
			values[4] = p.Sprintf("%.2f", stats.Max)
			values[5] = p.Sprintf("%.2f", stats.Avg)
			values[6] = p.Sprintf("%.2f", stats.Last)
		}
		for i := range tableValues.Fields {
			tableValues.Fields[i].Values = append(tableValues.Fields[i].Values, values[i])
		}
	}
	return tableValues
}

// AssertionsTable lists each assertion with its outcome.
func AssertionsTable(results []threshold.Result) TableValues {
	tableValues := TableValues{
		Name:        TableNameAssertions,
		HasRows:     true,
		NoDataFound: "No assertions.",
		Fields: []Field{
			{Name: "Assertion"},
			{Name: "Result"},
			{Name: "Min"},
			{Name: "Max"},
			{Name: "Avg"},
			{Name: "Detail"},
		},
	}
	if len(results) == 0 {
		tableValues.Fields = nil
		return tableValues
	}
	for _, r := range results {
		values := []string{r.Assertion.String(), ResultFail, "", "", "", ""}
		switch {
		case r.Err != nil:
			values[1] = ResultError
			values[5] = r.Err.Error()
		case r.Passed:
			values[1] = ResultPass
		}
		if r.Err == nil {
			values[2] = strconv.FormatFloat(r.Stats.Min, 'f', -1, 64)
			values[3] = strconv.FormatFloat(r.Stats.Max, 'f', -1, 64)
			values[4] = strconv.FormatFloat(r.Stats.Avg, 'f', 2, 64)
		}
		for i := range tableValues.Fields {
			tableValues.Fields[i].Values = append(tableValues.Fields[i].Values, values[i])
		}
	}
	return tableValues
}
