package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"

	"ptustress/internal/report"
	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"
)

// Analysis is the outcome of extracting columns from, and asserting on, one telemetry log.
type Analysis struct {
	Series  []telemetry.Series
	Results []threshold.Result
	Errs    []error // requested columns that could not be extracted
}

// Passed reports whether every requested column was extracted and every assertion passed.
func (a Analysis) Passed() bool {
	return len(a.Errs) == 0 && threshold.AllPassed(a.Results)
}

// Analyze extracts the requested columns, or every column of every device when none are
// requested, and evaluates the assertions.
func Analyze(table telemetry.Table, columns []ColumnSpec, assertions []threshold.Assertion) Analysis {
	var analysis Analysis
	if len(columns) == 0 {
		for _, device := range table.Devices() {
			names, err := table.ColumnNames(device)
			if err != nil {
				analysis.Errs = append(analysis.Errs, err)
				continue
			}
			for _, name := range names {
				columns = append(columns, ColumnSpec{Device: device, Column: name})
			}
		}
	}
	for _, column := range columns {
		series, err := table.Series(column.Device, column.Column)
		if err != nil {
			slog.Warn("failed to extract telemetry column", slog.String("column", column.String()), slog.String("error", err.Error()))
			analysis.Errs = append(analysis.Errs, fmt.Errorf("column %s: %w", column, err))
			continue
		}
		analysis.Series = append(analysis.Series, series)
	}
	analysis.Results = threshold.Evaluate(table, assertions)
	return analysis
}

// Tables returns the report tables for the analysis, preceded by header when it has fields.
func (a Analysis) Tables(header report.TableValues) []report.TableValues {
	var tables []report.TableValues
	if len(header.Fields) > 0 {
		tables = append(tables, header)
	}
	tables = append(tables, report.SummaryTable(a.Series))
	if len(a.Results) > 0 {
		tables = append(tables, report.AssertionsTable(a.Results))
	}
	tables = append(tables, report.SeriesTable(a.Series))
	return tables
}

// AnalyzeFile parses a local telemetry log, analyzes it, and writes the reports to
// outputDir, named after baseName.
func AnalyzeFile(logPath string, columns []ColumnSpec, assertions []threshold.Assertion, formats []string, outputDir string, baseName string) (Analysis, []string, error) {
	table, err := telemetry.ParseFile(logPath)
	if err != nil {
		return Analysis{}, nil, err
	}
	analysis := Analyze(table, columns, assertions)
	header := report.KeyValueTable(report.TableNameRun, []string{"Log File", "Devices"}, []string{logPath, fmt.Sprintf("%d", len(table))})
	reportPaths, err := createReports(outputDir, baseName, formats, analysis.Tables(header))
	return analysis, reportPaths, err
}
