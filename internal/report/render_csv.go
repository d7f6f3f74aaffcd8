package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// createCsvReport writes each table as a section: the table name on its own line, a
// header row of field names, then one row per value. Sections are separated by a blank line.
func createCsvReport(allTableValues []TableValues) (out []byte, err error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, tableValues := range allTableValues {
		if i > 0 {
			w.Flush()
			buf.WriteString("\n")
		}
		if err = w.Write([]string{tableValues.Name}); err != nil {
			return
		}
		if !hasData(tableValues) {
			if err = w.Write([]string{noDataMessage(tableValues)}); err != nil {
				return
			}
			continue
		}
		header := make([]string, 0, len(tableValues.Fields))
		for _, field := range tableValues.Fields {
			header = append(header, field.Name)
		}
		if err = w.Write(header); err != nil {
			return
		}
		for row := range len(tableValues.Fields[0].Values) {
			record := make([]string, 0, len(tableValues.Fields))
			for _, field := range tableValues.Fields {
				record = append(record, field.Values[row])
			}
			if err = w.Write(record); err != nil {
				return
			}
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		err = fmt.Errorf("failed to write csv report: %w", err)
		return
	}
	out = buf.Bytes()
	return
}
