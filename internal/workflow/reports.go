package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ptustress/internal/report"
	"ptustress/internal/util"
)

// writeReport writes the report bytes to the specified path.
func writeReport(reportBytes []byte, reportPath string) error {
	err := os.WriteFile(reportPath, reportBytes, 0644) // #nosec G306
	if err != nil {
		err = fmt.Errorf("failed to write report file: %v", err)
		slog.Error(err.Error())
		return err
	}
	return nil
}

// createReports renders the tables in each format and writes <baseName>.<format> files
// to outputDir. It returns the paths written.
func createReports(outputDir string, baseName string, formats []string, tables []report.TableValues) ([]string, error) {
	formats, err := report.ExpandFormats(formats)
	if err != nil {
		return nil, err
	}
	if err := util.CreateDirectoryIfNotExists(outputDir, 0755); err != nil { // #nosec G301
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	var reportPaths []string
	for _, format := range formats {
		reportBytes, err := report.Create(format, tables)
		if err != nil {
			return reportPaths, fmt.Errorf("failed to create %s report: %w", format, err)
		}
		reportPath := filepath.Join(outputDir, fmt.Sprintf("%s.%s", baseName, format))
		if err := writeReport(reportBytes, reportPath); err != nil {
			return reportPaths, err
		}
		reportPaths = append(reportPaths, reportPath)
	}
	return reportPaths, nil
}
