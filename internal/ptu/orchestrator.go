package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CoresPerSocket returns the configured core count or, when none was configured, queries
// the target once and caches the answer.
func (o *Orchestrator) CoresPerSocket() (int, error) {
	o.mu.Lock()
	cores := o.cores
	o.mu.Unlock()
	if cores > 0 {
		return cores, nil
	}
	cmd := o.platform.coresCommand()
	stdout, stderr, exitCode, err := o.runner.RunCommand(cmd, o.cfg.CommandTimeout, true)
	if err != nil {
		slog.Error("failed to query cores per socket", slog.String("target", o.TargetName()), slog.String("stderr", stderr), slog.Int("exitCode", exitCode), slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to query cores per socket on %s: %w", o.TargetName(), err)
	}
	cores, err = o.platform.parseCores(stdout)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cores per socket on %s: %w", o.TargetName(), err)
	}
	if cores < 1 {
		return 0, fmt.Errorf("%w: %s reports %d cores per socket", ErrUnsupportedConfiguration, o.TargetName(), cores)
	}
	o.mu.Lock()
	o.cores = cores
	o.mu.Unlock()
	slog.Debug("cores per socket", slog.String("target", o.TargetName()), slog.Int("cores", cores))
	return cores, nil
}

// ExecuteAsync builds the command line from baseCommand, launches it in the background in
// workDir, waits for the settle time and confirms that the tool is running. A tool that
// was launched but is not found is not killed here; callers should still call Kill.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, baseCommand string, workDir string) error {
	commandLine, err := o.BuildCommand(baseCommand)
	if err != nil {
		return err
	}
	if workDir == "" {
		workDir = o.cfg.ToolDir
	}
	slog.Info("launching stress tool", slog.String("target", o.TargetName()), slog.String("command", commandLine), slog.String("dir", workDir))
	cmd := o.platform.launchCommand(workDir, commandLine, o.cfg.Elevate)
	_, stderr, exitCode, err := o.runner.RunCommand(cmd, o.cfg.CommandTimeout, false)
	if err != nil {
		slog.Error("failed to launch stress tool", slog.String("target", o.TargetName()), slog.String("stderr", stderr), slog.Int("exitCode", exitCode), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %q on %s: %v", ErrLaunchFailed, commandLine, o.TargetName(), err)
	}
	if err := sleep(ctx, o.cfg.SettleTime); err != nil {
		return fmt.Errorf("interrupted while waiting for %q to start on %s: %w", commandLine, o.TargetName(), err)
	}
	running, err := o.CheckRunning()
	if err != nil {
		return fmt.Errorf("%w: %q on %s: %v", ErrLaunchFailed, commandLine, o.TargetName(), err)
	}
	if !running {
		return fmt.Errorf("%w: %q is not running on %s after %s", ErrLaunchFailed, commandLine, o.TargetName(), o.cfg.SettleTime)
	}
	slog.Info("stress tool is running", slog.String("target", o.TargetName()))
	return nil
}

// CheckRunning reports whether the tool's name appears in the target's process table.
func (o *Orchestrator) CheckRunning() (bool, error) {
	cmd := o.platform.probeCommand(o.cfg.ProcessName)
	stdout, stderr, exitCode, err := o.runner.RunCommand(cmd, o.cfg.CommandTimeout, true)
	if err != nil {
		slog.Debug("process probe failed", slog.String("target", o.TargetName()), slog.String("stderr", stderr), slog.Int("exitCode", exitCode), slog.String("error", err.Error()))
		return false, fmt.Errorf("failed to list processes on %s: %w", o.TargetName(), err)
	}
	return o.platform.isRunning(stdout, o.cfg.ProcessName), nil
}

// Kill issues the tool's kill command and verifies that the tool is gone, re-issuing the
// kill up to KillRetries times KillInterval apart. Failures are logged, never returned.
// The result reports whether the tool was confirmed stopped.
func (o *Orchestrator) Kill(ctx context.Context) bool {
	for attempt := 1; attempt <= o.cfg.KillRetries; attempt++ {
		cmd := o.platform.killCommand(o.cfg.ToolDir, o.cfg.ProcessName, o.cfg.Elevate)
		_, stderr, exitCode, err := o.runner.RunCommand(cmd, o.cfg.CommandTimeout, true)
		if err != nil {
			// a kill with nothing to kill exits non-zero
			slog.Warn("kill command failed", slog.String("target", o.TargetName()), slog.Int("attempt", attempt), slog.String("stderr", stderr), slog.Int("exitCode", exitCode), slog.String("error", err.Error()))
		}
		running, err := o.CheckRunning()
		if err != nil {
			slog.Warn("failed to verify kill", slog.String("target", o.TargetName()), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		} else if !running {
			slog.Info("stress tool stopped", slog.String("target", o.TargetName()), slog.Int("attempt", attempt))
			return true
		}
		if attempt == o.cfg.KillRetries {
			break
		}
		if err := sleep(ctx, o.cfg.KillInterval); err != nil {
			// keep going without waiting, the caller is shutting down
			slog.Debug("kill retry wait interrupted", slog.String("target", o.TargetName()))
		}
	}
	slog.Error("stress tool may still be running", slog.String("target", o.TargetName()), slog.Int("attempts", o.cfg.KillRetries))
	return false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
