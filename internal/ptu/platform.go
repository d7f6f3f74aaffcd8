package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os/exec"
)

// platform holds the operating-system specific commands and output parsers.
type platform interface {
	executable(processName string) string
	launchCommand(workDir string, commandLine string, elevate bool) *exec.Cmd
	probeCommand(processName string) *exec.Cmd
	isRunning(probeOutput string, processName string) bool
	killCommand(toolDir string, processName string, elevate bool) *exec.Cmd
	coresCommand() *exec.Cmd
	parseCores(output string) (int, error)
}

func newPlatform(os OperatingSystem) (platform, error) {
	switch os {
	case Linux:
		return linuxPlatform{}, nil
	case Windows:
		return windowsPlatform{}, nil
	}
	return nil, fmt.Errorf("%w: operating system %s", ErrUnsupportedConfiguration, os)
}
