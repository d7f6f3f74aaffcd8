// Package telemetry is a subcommand of the root command. It analyzes a PTU telemetry log
// that was already collected, without running the stress tool.
package telemetry

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ptustress/internal/app"
	"ptustress/internal/report"
	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"
	"ptustress/internal/util"
	"ptustress/internal/workflow"

	"github.com/spf13/cobra"
)

const cmdName = "telemetry"

var examples = []string{
	fmt.Sprintf("  List devices and columns in a log:  $ %s %s --input ptu.csv --list", app.Name, cmdName),
	fmt.Sprintf("  Report one column:                  $ %s %s --input ptu.csv --column CPU0:Power", app.Name, cmdName),
	fmt.Sprintf("  Assert on a logged run:             $ %s %s --input ptu.csv --assert \"CPU0:Temp:max <= 95\"", app.Name, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Aliases:       []string{"telem"},
	Short:         "Analyze a PTU telemetry log",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagInput      string
	flagList       bool
	flagColumns    []string
	flagAssertions []string
	flagFormat     []string
)

const (
	flagInputName = "input"
	flagListName  = "list"
)

func init() {
	Cmd.Flags().StringVar(&flagInput, flagInputName, "", "")
	Cmd.Flags().BoolVar(&flagList, flagListName, false, "")
	Cmd.Flags().StringArrayVar(&flagColumns, app.FlagColumnName, nil, "")
	Cmd.Flags().StringArrayVar(&flagAssertions, app.FlagAssertName, nil, "")
	Cmd.Flags().StringSliceVar(&flagFormat, app.FlagFormatName, []string{report.FormatTxt}, "")

	Cmd.SetUsageFunc(workflow.UsageFunc(getFlagGroups))
}

func getFlagGroups() []app.FlagGroup {
	var groups []app.FlagGroup
	flags := []app.Flag{
		{
			Name: flagInputName,
			Help: "PTU telemetry log (CSV) to analyze",
		},
		{
			Name: flagListName,
			Help: "list the devices and columns in the log and exit",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Input Options",
		Flags:     flags,
	})
	flags = []app.Flag{
		{
			Name: app.FlagColumnName,
			Help: "telemetry column to report as device:column, may be repeated (default: all columns)",
		},
		{
			Name: app.FlagAssertName,
			Help: "threshold to assert as device:column:expression, e.g. \"CPU0:Power:max < 350\", may be repeated",
		},
		{
			Name: app.FlagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Report Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagInput == "" {
		return workflow.FlagValidationError(cmd, fmt.Sprintf("--%s is required", flagInputName))
	}
	exists, err := util.FileExists(flagInput)
	if err != nil || !exists {
		return workflow.FlagValidationError(cmd, fmt.Sprintf("input file %s does not exist", flagInput))
	}
	if _, err := report.ExpandFormats(flagFormat); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	if _, err := workflow.ParseColumnSpecs(flagColumns); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	if _, err := threshold.ParseAssertions(flagAssertions); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if flagList {
		table, err := telemetry.ParseFile(flagInput)
		if err != nil {
			return reportError(err)
		}
		out, err := report.Create(report.FormatTxt, []report.TableValues{listTable(table)})
		if err != nil {
			return reportError(err)
		}
		fmt.Print(string(out))
		return nil
	}
	appContext, ok := app.FromContext(cmd.Parent().Context())
	if !ok {
		return reportError(fmt.Errorf("application context is not set"))
	}
	columns, err := workflow.ParseColumnSpecs(flagColumns)
	if err != nil {
		return reportError(err)
	}
	assertions, err := threshold.ParseAssertions(flagAssertions)
	if err != nil {
		return reportError(err)
	}
	baseName := strings.TrimSuffix(filepath.Base(flagInput), filepath.Ext(flagInput)) + "_telem"
	analysis, reportPaths, err := workflow.AnalyzeFile(flagInput, columns, assertions, flagFormat, appContext.OutputDir, baseName)
	if err != nil {
		return reportError(err)
	}
	if len(reportPaths) == 1 && strings.HasSuffix(reportPaths[0], "."+report.FormatTxt) {
		if reportBytes, err := os.ReadFile(reportPaths[0]); err == nil {
			fmt.Print(string(reportBytes))
		}
	}
	fmt.Println("Report files:")
	for _, reportPath := range reportPaths {
		fmt.Printf("  %s\n", reportPath)
	}
	if !analysis.Passed() {
		return reportError(errors.Join(append([]error{errAssertionsFailed}, analysis.Errs...)...))
	}
	return nil
}

var errAssertionsFailed = errors.New("telemetry did not pass")

// listTable has one row per device column in the log.
func listTable(table telemetry.Table) report.TableValues {
	tableValues := report.TableValues{
		Name:    "Telemetry Columns",
		HasRows: true,
		Fields: []report.Field{
			{Name: "Device"},
			{Name: "Column"},
		},
	}
	for _, device := range table.Devices() {
		columnNames, err := table.ColumnNames(device)
		if err != nil {
			continue
		}
		for _, column := range columnNames {
			tableValues.Fields[0].Values = append(tableValues.Fields[0].Values, device)
			tableValues.Fields[1].Values = append(tableValues.Fields[1].Values, column)
		}
	}
	return tableValues
}

func reportError(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}
