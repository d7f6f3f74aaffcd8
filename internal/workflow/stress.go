package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ptustress/internal/progress"
	"ptustress/internal/ptu"
	"ptustress/internal/report"
	"ptustress/internal/sink"
	"ptustress/internal/target"
	"ptustress/internal/telemetry"
	"ptustress/internal/threshold"
	"ptustress/internal/util"

	"github.com/google/uuid"
)

// StressRun holds everything a stress run needs besides the targets.
type StressRun struct {
	Options    StressOptions
	Columns    []ColumnSpec
	Assertions []threshold.Assertion
	OutputDir  string
	Status     progress.MultiSpinnerUpdateFunc // may be nil
	Metrics    *sink.Prometheus                // may be nil
	Influx     *sink.Influx                    // may be nil
}

// TargetResult is the outcome of a stress run on one target.
type TargetResult struct {
	TargetName  string
	RunID       string
	Command     string
	Started     time.Time
	Elapsed     time.Duration
	EarlyExit   bool // the tool left the process table before the duration elapsed
	Cancelled   bool
	Stopped     bool // the tool was confirmed gone after the kill
	LogFile     string
	Analysis    Analysis
	ReportFiles []string
	Err         error // set when the run could not produce telemetry
}

// Passed reports whether the run completed and every assertion passed.
func (r TargetResult) Passed() bool {
	return r.Err == nil && !r.EarlyExit && !r.Cancelled && r.Analysis.Passed()
}

// stressJob pairs a target with the orchestrator that owns it for the run.
type stressJob struct {
	target       target.Target
	orchestrator *ptu.Orchestrator
}

// NewOrchestrators creates one orchestrator per target.
func NewOrchestrators(targets []target.Target, opts StressOptions) ([]*ptu.Orchestrator, error) {
	cfg, err := opts.PTUConfig()
	if err != nil {
		return nil, err
	}
	orchestrators := make([]*ptu.Orchestrator, 0, len(targets))
	for _, t := range targets {
		o, err := ptu.NewOrchestrator(t, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up %s: %w", t.GetName(), err)
		}
		orchestrators = append(orchestrators, o)
	}
	return orchestrators, nil
}

// RunStress runs the stress tool on every target concurrently and returns the results in
// target order. orchestrators[i] must drive targets[i].
func RunStress(ctx context.Context, targets []target.Target, orchestrators []*ptu.Orchestrator, run StressRun) []TargetResult {
	results := make([]TargetResult, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each goroutine owns its slot, targets may share a name
			results[i] = stressOnTarget(ctx, stressJob{target: t, orchestrator: orchestrators[i]}, run)
		}()
	}
	wg.Wait()
	return results
}

// stressOnTarget runs the stress tool on one target.
func stressOnTarget(ctx context.Context, job stressJob, run StressRun) (result TargetResult) {
	name := job.target.GetName()
	result = TargetResult{TargetName: name, RunID: uuid.NewString()}
	status := func(s string) {
		if run.Status != nil {
			_ = run.Status(name, s)
		}
	}
	defer func() {
		if result.Err != nil {
			status(fmt.Sprintf("error: %v", result.Err))
		}
	}()
	o := job.orchestrator
	opts := run.Options
	// configuration errors abort before anything runs on the target
	if opts.Percent != nil {
		if result.Err = o.SetPercentCoresToStress(*opts.Percent); result.Err != nil {
			return
		}
	}
	if opts.CPUMask != "" {
		if result.Err = o.SetCPUMask(opts.CPUMask); result.Err != nil {
			return
		}
	}
	logName := opts.LogName
	if logName == "" {
		logName = "ptustress_" + strings.ReplaceAll(result.RunID, "-", "")[:12]
	}
	result.LogFile = opts.RemoteLogFile(logName)
	baseCommand, err := ptu.RenderCommand(opts.Template, ptu.CommandParams{
		Executable: o.Executable(),
		LogName:    logName,
		CoreTest:   opts.CoreTest,
		MemTest:    opts.MemTest,
	})
	if err != nil {
		result.Err = err
		return
	}
	if result.Command, err = o.BuildCommand(baseCommand); err != nil {
		result.Err = err
		return
	}
	if o.Config().OS == ptu.Linux {
		checkToolDir(job.target, o.Config().ToolDir)
	}
	// at most one instance per target
	status("stopping prior instance")
	if !o.Kill(ctx) {
		result.Err = fmt.Errorf("a prior instance of %s could not be stopped", o.Config().ProcessName)
		return
	}
	status("launching")
	result.Started = time.Now()
	launchErr := o.ExecuteAsync(ctx, baseCommand, o.Config().ToolDir)
	// cleanup runs even when the run was cancelled
	cleanupCtx := context.WithoutCancel(ctx)
	if launchErr != nil {
		result.Err = launchErr
		result.Cancelled = ctx.Err() != nil
		result.Stopped = o.Kill(cleanupCtx)
		run.Metrics.SetRunning(name, false)
		return
	}
	run.Metrics.SetRunning(name, true)
	result.EarlyExit, result.Cancelled = waitForDuration(ctx, o, opts, run, status)
	result.Elapsed = time.Since(result.Started)
	status("stopping")
	result.Stopped = o.Kill(cleanupCtx)
	run.Metrics.SetRunning(name, !result.Stopped)
	if !result.Stopped {
		slog.Error("stress tool was not confirmed stopped", slog.String("target", name))
	}
	// collect and analyze the telemetry log
	status("collecting telemetry")
	targetOutputDir := filepath.Join(run.OutputDir, name)
	if err := createDir(targetOutputDir); err != nil {
		result.Err = err
		return
	}
	if err := job.target.PullFile(result.LogFile, targetOutputDir); err != nil {
		result.Err = fmt.Errorf("failed to retrieve telemetry log %s: %w", result.LogFile, err)
		return
	}
	localLog := filepath.Join(targetOutputDir, baseName(result.LogFile))
	table, err := telemetry.ParseFile(localLog)
	if err != nil {
		result.Err = fmt.Errorf("failed to parse telemetry log %s: %w", localLog, err)
		return
	}
	result.LogFile = localLog
	result.Analysis = Analyze(table, run.Columns, run.Assertions)
	run.Metrics.SetTelemetry(name, result.Analysis.Series)
	run.Metrics.SetAssertions(name, result.Analysis.Results)
	if run.Influx != nil {
		if err := run.Influx.WriteSeries(cleanupCtx, name, result.RunID, result.Analysis.Series, result.Started, opts.SampleInterval); err != nil {
			// the reports still hold the data
			slog.Error("failed to export telemetry", slog.String("target", name), slog.String("error", err.Error()))
		}
	}
	status("writing reports")
	result.ReportFiles, err = createReports(run.OutputDir, name+"_ptu", opts.Formats, result.Analysis.Tables(runTable(result, o)))
	if err != nil {
		result.Err = err
		return
	}
	switch {
	case result.Cancelled:
		status("cancelled")
	case result.EarlyExit:
		status("stress tool exited early")
	case result.Analysis.Passed():
		status("complete")
	default:
		status("complete, assertions failed")
	}
	return
}

// waitForDuration waits for the run's duration, probing the tool every poll interval.
// It returns early when the tool disappears or ctx is cancelled.
func waitForDuration(ctx context.Context, o *ptu.Orchestrator, opts StressOptions, run StressRun, status func(string)) (earlyExit bool, cancelled bool) {
	timer := time.NewTimer(opts.Duration)
	defer timer.Stop()
	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	deadline := time.Now().Add(opts.Duration)
	status(fmt.Sprintf("stressing for %s", opts.Duration.Round(time.Second)))
	for {
		select {
		case <-ctx.Done():
			slog.Info("stress run cancelled", slog.String("target", o.TargetName()))
			return false, true
		case <-timer.C:
			return false, false
		case <-ticker.C:
			running, err := o.CheckRunning()
			if err != nil {
				slog.Warn("running probe failed", slog.String("target", o.TargetName()), slog.String("error", err.Error()))
				continue
			}
			run.Metrics.SetRunning(o.TargetName(), running)
			if !running {
				slog.Error("stress tool exited before the duration elapsed", slog.String("target", o.TargetName()))
				return true, false
			}
			remaining := time.Until(deadline).Round(time.Second)
			status(fmt.Sprintf("stressing, %s remaining", remaining))
		}
	}
}

// checkToolDir logs a warning when the tool directory's file system can't be checked and
// an error when it is mounted noexec, in which case the launch will fail.
func checkToolDir(t target.Target, toolDir string) {
	noExec, err := isDirNoExec(t, toolDir)
	if err != nil {
		slog.Debug("failed to check if tool directory is mounted on 'noexec' file system", slog.String("target", t.GetName()), slog.String("error", err.Error()))
		return
	}
	if noExec {
		slog.Error("tool directory is on a file system mounted with the 'noexec' option", slog.String("target", t.GetName()), slog.String("dir", toolDir))
	}
}

func runTable(result TargetResult, o *ptu.Orchestrator) report.TableValues {
	percent := "not set"
	if p := o.PercentCoresToStress(); p != 0 {
		percent = strconv.Itoa(p)
	}
	cpuMask := o.CPUMask()
	if cpuMask == "" {
		cpuMask = "not set"
	}
	return report.KeyValueTable(report.TableNameRun,
		[]string{"Target", "Run ID", "Command", "Percent Cores", "CPU Mask", "Started", "Elapsed", "Exited Early", "Cancelled", "Stopped", "Log File"},
		[]string{
			result.TargetName,
			result.RunID,
			result.Command,
			percent,
			cpuMask,
			result.Started.Format(time.RFC3339),
			result.Elapsed.Round(time.Second).String(),
			strconv.FormatBool(result.EarlyExit),
			strconv.FormatBool(result.Cancelled),
			strconv.FormatBool(result.Stopped),
			result.LogFile,
		})
}

// baseName returns the last element of a target path, either slash style.
func baseName(targetPath string) string {
	if i := strings.LastIndexAny(targetPath, `/\`); i >= 0 {
		return targetPath[i+1:]
	}
	return targetPath
}

func createDir(dir string) error {
	if err := util.CreateDirectoryIfNotExists(dir, 0755); err != nil { // #nosec G301
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// ErrStressFailed is returned by commands when any target's run did not pass.
var ErrStressFailed = errors.New("stress run failed")
