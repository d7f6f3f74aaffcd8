package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"log/slog"
	"sync"

	"ptustress/internal/ptu"
	"ptustress/internal/report"
)

// ProbeResult is the state of the stress tool on one target.
type ProbeResult struct {
	TargetName string
	Running    bool
	Err        error
}

// CheckTargets probes every target concurrently. Results are in orchestrator order.
func CheckTargets(orchestrators []*ptu.Orchestrator) []ProbeResult {
	results := make([]ProbeResult, len(orchestrators))
	var wg sync.WaitGroup
	for i, o := range orchestrators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			running, err := o.CheckRunning()
			results[i] = ProbeResult{TargetName: o.TargetName(), Running: running, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// KillTargets kills the stress tool on every target concurrently. Running is true in a
// result when the tool could not be confirmed stopped.
func KillTargets(ctx context.Context, orchestrators []*ptu.Orchestrator) []ProbeResult {
	results := make([]ProbeResult, len(orchestrators))
	var wg sync.WaitGroup
	for i, o := range orchestrators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopped := o.Kill(ctx)
			if !stopped {
				slog.Warn("stress tool not confirmed stopped", slog.String("target", o.TargetName()))
			}
			results[i] = ProbeResult{TargetName: o.TargetName(), Running: !stopped}
		}()
	}
	wg.Wait()
	return results
}

// ProbeTable lays the probe results out as a report table.
func ProbeTable(name string, results []ProbeResult) report.TableValues {
	tableValues := report.TableValues{
		Name:    name,
		HasRows: true,
		Fields: []report.Field{
			{Name: "Target"},
			{Name: "Running"},
			{Name: "Error"},
		},
	}
	for _, r := range results {
		running := "no"
		if r.Running {
			running = "yes"
		}
		errText := ""
		if r.Err != nil {
			running = "unknown"
			errText = r.Err.Error()
		}
		tableValues.Fields[0].Values = append(tableValues.Fields[0].Values, r.TargetName)
		tableValues.Fields[1].Values = append(tableValues.Fields[1].Values, running)
		tableValues.Fields[2].Values = append(tableValues.Fields[2].Values, errText)
	}
	return tableValues
}
