// Package report provides functions to generate reports in various formats such as txt, json, csv, xlsx.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

const (
	FormatXlsx = "xlsx"
	FormatJson = "json"
	FormatTxt  = "txt"
	FormatCsv  = "csv"
	FormatAll  = "all"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatTxt, FormatJson, FormatCsv, FormatXlsx}

// Field represents the values for a field in a table
type Field struct {
	Name   string
	Values []string
}

// TableValues is a named table of fields
type TableValues struct {
	Name        string
	HasRows     bool   // table is meant to be displayed in row form, i.e., a field may have multiple values
	NoDataFound string // message to display when no data is found
	Fields      []Field
}

// ExpandFormats replaces "all" with every supported format and validates the others.
func ExpandFormats(formats []string) ([]string, error) {
	var expanded []string
	for _, format := range formats {
		if format == FormatAll {
			return FormatOptions, nil
		}
		if !isFormat(format) {
			return nil, fmt.Errorf("format options are: %s, %s", strings.Join(FormatOptions, ", "), FormatAll)
		}
		expanded = append(expanded, format)
	}
	return expanded, nil
}

func isFormat(format string) bool {
	for _, f := range FormatOptions {
		if f == format {
			return true
		}
	}
	return false
}

// Create generates a report in the specified format from the provided table values.
// All fields of a table must have the same number of values.
func Create(format string, allTableValues []TableValues) (out []byte, err error) {
	for _, tableValues := range allTableValues {
		if err = validateTableValues(tableValues); err != nil {
			return nil, err
		}
	}
	switch format {
	case FormatTxt:
		return createTextReport(allTableValues)
	case FormatJson:
		return createJsonReport(allTableValues)
	case FormatCsv:
		return createCsvReport(allTableValues)
	case FormatXlsx:
		return createXlsxReport(allTableValues)
	}
	return nil, fmt.Errorf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format)
}

func validateTableValues(tableValues TableValues) error {
	if tableValues.Name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	// no field values is a valid state
	if len(tableValues.Fields) == 0 {
		return nil
	}
	// field names cannot be empty
	for i, field := range tableValues.Fields {
		if field.Name == "" {
			return fmt.Errorf("table %s, field %d, name cannot be empty", tableValues.Name, i)
		}
	}
	// the number of entries in each field must be the same
	numEntries := len(tableValues.Fields[0].Values)
	for i, field := range tableValues.Fields {
		if len(field.Values) != numEntries {
			return fmt.Errorf("table %s, field %d, %s, number of entries must be the same for all fields, expected %d, got %d", tableValues.Name, i, field.Name, numEntries, len(field.Values))
		}
	}
	return nil
}

func hasData(tableValues TableValues) bool {
	return len(tableValues.Fields) > 0 && len(tableValues.Fields[0].Values) > 0
}

func noDataMessage(tableValues TableValues) string {
	if tableValues.NoDataFound != "" {
		return tableValues.NoDataFound
	}
	return NoDataFound
}
