// Package workflow implements the flow shared by the commands (stress, status, kill,
// telemetry). It handles target management, the concurrent stress run, telemetry
// analysis, and report generation.
package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"ptustress/internal/app"
	"ptustress/internal/progress"
	"ptustress/internal/ptu"
	"ptustress/internal/report"
	"ptustress/internal/sink"
	"ptustress/internal/target"
	"ptustress/internal/threshold"
	"ptustress/internal/util"

	"github.com/spf13/cobra"
)

// StressCommand is the flow of the stress command. The command populates the struct
// from its flags and calls Run.
type StressCommand struct {
	Cmd            *cobra.Command
	Options        StressOptions
	PrometheusAddr string // serve gauges at this address when set
	Influx         sink.InfluxConfig
}

// Run resolves the targets, runs the stress tool on all of them, and reports the results.
func (sc *StressCommand) Run() error {
	appContext, ok := app.FromContext(sc.Cmd.Parent().Context())
	if !ok {
		return fmt.Errorf("application context is not set")
	}
	sc.Cmd.SilenceUsage = true
	opts := sc.Options
	columns, err := ParseColumnSpecs(opts.Columns)
	if err != nil {
		return reportError(err)
	}
	assertions, err := threshold.ParseAssertions(opts.Assertions)
	if err != nil {
		return reportError(err)
	}
	if err := util.CreateDirectoryIfNotExists(appContext.OutputDir, 0755); err != nil { // #nosec G301
		return reportError(fmt.Errorf("failed to create output directory: %w", err))
	}
	myTargets, targetErrs, err := GetTargets(sc.Cmd, opts.Elevate, true)
	if err != nil {
		return reportError(err)
	}
	// setup and start the progress indicator
	multiSpinner := progress.NewMultiSpinner()
	for _, t := range myTargets {
		if err := multiSpinner.AddSpinner(t.GetName()); err != nil {
			return reportError(err)
		}
	}
	multiSpinner.Start()
	myTargets = removeFailedTargets(myTargets, targetErrs, multiSpinner.Status)
	if len(myTargets) == 0 {
		multiSpinner.Finish()
		return reportError(fmt.Errorf("no successful targets found"))
	}
	orchestrators, err := NewOrchestrators(myTargets, opts)
	if err != nil {
		multiSpinner.Finish()
		return reportError(err)
	}
	var metrics *sink.Prometheus
	if sc.PrometheusAddr != "" {
		metrics = sink.NewPrometheus()
		metrics.Start(sc.PrometheusAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Stop(ctx)
		}()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var influx *sink.Influx
	if sc.Influx.Enabled() {
		influx, err = sink.NewInflux(ctx, sc.Influx)
		if err != nil {
			multiSpinner.Finish()
			return reportError(err)
		}
		defer influx.Close()
	}
	// set up signal handler to stop the stress tool on ctrl-c/SIGINT or SIGTERM
	stopSignalHandler := configureSignalHandler(cancel, orchestrators, multiSpinner.Status)
	defer stopSignalHandler()
	results := RunStress(ctx, myTargets, orchestrators, StressRun{
		Options:    opts,
		Columns:    columns,
		Assertions: assertions,
		OutputDir:  appContext.OutputDir,
		Status:     multiSpinner.Status,
		Metrics:    metrics,
		Influx:     influx,
	})
	multiSpinner.Finish()
	fmt.Println()
	return printStressResults(results, opts.Formats)
}

// printStressResults prints the report files and the outcome of each target's run. It
// returns ErrStressFailed when any run did not pass.
func printStressResults(results []TargetResult, formats []string) error {
	var failed []string
	for _, result := range results {
		if len(formats) == 1 && formats[0] == report.FormatTxt && len(result.ReportFiles) == 1 {
			if reportBytes, err := os.ReadFile(result.ReportFiles[0]); err == nil {
				fmt.Printf("%s:\n%s", result.TargetName, string(reportBytes))
			}
		}
		if !result.Passed() {
			failed = append(failed, result.TargetName)
		}
	}
	var reportFiles []string
	for _, result := range results {
		reportFiles = append(reportFiles, result.ReportFiles...)
	}
	if len(reportFiles) > 0 {
		fmt.Println("Report files:")
	}
	for _, reportFile := range reportFiles {
		fmt.Printf("  %s\n", reportFile)
	}
	for _, result := range results {
		outcome := "PASS"
		switch {
		case result.Err != nil:
			outcome = fmt.Sprintf("ERROR: %v", result.Err)
		case result.Cancelled:
			outcome = "CANCELLED"
		case result.EarlyExit:
			outcome = "FAIL: stress tool exited early"
		case !result.Analysis.Passed():
			outcome = "FAIL"
		}
		fmt.Printf("%s: %s\n", result.TargetName, outcome)
		slog.Info("stress run finished", slog.String("target", result.TargetName), slog.String("runID", result.RunID), slog.String("outcome", outcome))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w on %d of %d target(s)", ErrStressFailed, len(failed), len(results))
	}
	return nil
}

// GetOrchestrators resolves the command's targets and creates an orchestrator for each
// target that could be reached. Unreachable targets are reported and skipped.
func GetOrchestrators(cmd *cobra.Command, opts StressOptions) ([]*ptu.Orchestrator, error) {
	myTargets, targetErrs, err := GetTargets(cmd, opts.Elevate, true)
	if err != nil {
		return nil, err
	}
	myTargets = removeFailedTargets(myTargets, targetErrs, func(name string, status string) error {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, status)
		return nil
	})
	if len(myTargets) == 0 {
		return nil, fmt.Errorf("no successful targets found")
	}
	return NewOrchestrators(myTargets, opts)
}

// removeFailedTargets drops the targets that have an error, reporting each through statusFunc.
func removeFailedTargets(myTargets []target.Target, targetErrs []error, statusFunc progress.MultiSpinnerUpdateFunc) []target.Target {
	var indicesToRemove []int
	for i := range targetErrs {
		if targetErrs[i] != nil {
			slog.Error("target is not usable", slog.String("target", myTargets[i].GetName()), slog.String("error", targetErrs[i].Error()))
			_ = statusFunc(myTargets[i].GetName(), fmt.Sprintf("Error: %v", targetErrs[i]))
			indicesToRemove = append(indicesToRemove, i)
		}
	}
	for i := len(indicesToRemove) - 1; i >= 0; i-- {
		myTargets = slices.Delete(myTargets, indicesToRemove[i], indicesToRemove[i]+1)
	}
	return myTargets
}

// reportError prints and logs err, then returns it.
func reportError(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	slog.Error(err.Error())
	return err
}

// FlagValidationError is used to report an error with a flag
func FlagValidationError(cmd *cobra.Command, msg string) error {
	err := fmt.Errorf("%s", msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "See '%s --help' for usage details.\n", cmd.CommandPath())
	cmd.SilenceUsage = true
	return err
}
