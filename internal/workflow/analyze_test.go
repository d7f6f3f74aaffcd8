package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ptustress/internal/report"
	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	table, err := telemetry.Parse(strings.NewReader(testLog))
	require.NoError(t, err)
	assertions, err := threshold.ParseAssertions([]string{"CPU1:Power:last == 240"})
	require.NoError(t, err)
	analysis := Analyze(table, []ColumnSpec{{Device: "CPU1", Column: "Power"}, {Device: "CPU9", Column: "Power"}}, assertions)
	require.Len(t, analysis.Series, 1)
	require.Len(t, analysis.Errs, 1)
	assert.ErrorIs(t, analysis.Errs[0], telemetry.ErrDeviceNotFound)
	assert.True(t, threshold.AllPassed(analysis.Results))
	assert.False(t, analysis.Passed(), "a missing column fails the analysis")

	tables := analysis.Tables(report.TableValues{Name: report.TableNameRun})
	var names []string
	for _, tv := range tables {
		names = append(names, tv.Name)
	}
	assert.Equal(t, []string{report.TableNameSummary, report.TableNameAssertions, report.TableNameTelemetry}, names)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "ptu.csv")
	require.NoError(t, os.WriteFile(logPath, []byte(testLog), 0644))
	outputDir := filepath.Join(dir, "out")
	analysis, reportPaths, err := AnalyzeFile(logPath, nil, nil, []string{report.FormatTxt, report.FormatCsv}, outputDir, "ptu")
	require.NoError(t, err)
	assert.True(t, analysis.Passed())
	assert.Len(t, analysis.Series, 4)
	assert.Equal(t, []string{filepath.Join(outputDir, "ptu.txt"), filepath.Join(outputDir, "ptu.csv")}, reportPaths)
	text, err := os.ReadFile(reportPaths[0])
	require.NoError(t, err)
	assert.Contains(t, string(text), "Log File: "+logPath)
	assert.Contains(t, string(text), "CPU0 Power")

	_, _, err = AnalyzeFile(filepath.Join(dir, "missing.csv"), nil, nil, []string{report.FormatTxt}, outputDir, "ptu")
	assert.Error(t, err)
}
