package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"ptustress/internal/util"
)

// DefaultCommandTemplate renders the PTU monitor/logging command line.
const DefaultCommandTemplate = `{{.Executable}} -mon -log -csv -logname {{.LogName}}{{if .CoreTest}} -ct {{.CoreTest}}{{end}}{{if .MemTest}} -mt {{.MemTest}}{{end}}`

// CommandParams are the values available to a command template.
type CommandParams struct {
	Executable string // PTU executable, e.g. ./ptu
	LogName    string // value of -logname
	CoreTest   int    // -ct test number, omitted when zero
	MemTest    int    // -mt test number, omitted when zero
}

// RenderCommand renders tmpl (DefaultCommandTemplate when empty) with params.
func RenderCommand(tmpl string, params CommandParams) (string, error) {
	if tmpl == "" {
		tmpl = DefaultCommandTemplate
	}
	t, err := template.New("command").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse command template: %w", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("failed to render command template: %w", err)
	}
	command := strings.TrimSpace(sb.String())
	if command == "" {
		return "", fmt.Errorf("%w: command template rendered an empty command", ErrUnsupportedConfiguration)
	}
	return command, nil
}

// Executable returns the PTU executable as invoked from the tool directory.
func (o *Orchestrator) Executable() string {
	return o.platform.executable(o.cfg.ProcessName)
}

// BuildCommand appends the core-mask, CPU-mask and assume-yes flags to baseCommand:
//
//	percent < 100 and mask set:  -cpucore <coremask> -cpu <mask>
//	percent < 100 only:          -cpucore <coremask>
//	mask only:                   -cpu <mask>
//
// followed by -y when AssumeYes is configured.
func (o *Orchestrator) BuildCommand(baseCommand string) (string, error) {
	baseCommand = strings.TrimSpace(baseCommand)
	if baseCommand == "" {
		return "", fmt.Errorf("%w: empty base command", ErrUnsupportedConfiguration)
	}
	percent := o.PercentCoresToStress()
	cpuMask := o.CPUMask()
	args := []string{baseCommand}
	if percent > 0 && percent < 100 {
		cores, err := o.CoresPerSocket()
		if err != nil {
			return "", err
		}
		coreMask, err := CoreMask(cores, percent)
		if err != nil {
			return "", err
		}
		if stressed, err := util.HexSetBits(coreMask); err == nil {
			slog.Debug("core mask", slog.String("target", o.TargetName()), slog.String("mask", coreMask), slog.Int("cores", stressed), slog.Int("coresPerSocket", cores))
		}
		args = append(args, "-cpucore", coreMask)
	}
	if cpuMask != "" {
		args = append(args, "-cpu", cpuMask)
	}
	if o.cfg.AssumeYes {
		args = append(args, "-y")
	}
	return strings.Join(args, " "), nil
}
