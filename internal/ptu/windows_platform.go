package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type windowsPlatform struct{}

func (windowsPlatform) executable(processName string) string {
	return processName + ".exe"
}

// launchCommand uses "start /B" so cmd.exe returns while PTU keeps running. Elevation is
// not applied; the caller's session must already be elevated.
func (windowsPlatform) launchCommand(workDir string, commandLine string, _ bool) *exec.Cmd {
	args := []string{"/C", "start", "/D", workDir, "/B"}
	args = append(args, strings.Fields(commandLine)...)
	return exec.Command("cmd", args...)
}

func (windowsPlatform) probeCommand(processName string) *exec.Cmd {
	return exec.Command("tasklist", "/FI", fmt.Sprintf("IMAGENAME eq %s*", processName), "/FO", "CSV", "/NH")
}

// isRunning parses CSV-formatted tasklist output, e.g. "ptu.exe","4242","Console","1","10,240 K".
// When nothing matches, tasklist prints an INFO line instead.
func (windowsPlatform) isRunning(probeOutput string, processName string) bool {
	prefix := strings.ToLower(processName)
	for line := range strings.SplitSeq(probeOutput, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, `"`) {
			continue
		}
		image, _, _ := strings.Cut(line, ",")
		image = strings.ToLower(strings.Trim(image, `"`))
		if strings.HasPrefix(image, prefix) {
			return true
		}
	}
	return false
}

func (windowsPlatform) killCommand(_ string, processName string, _ bool) *exec.Cmd {
	return exec.Command("taskkill", "/F", "/IM", processName+".exe")
}

func (windowsPlatform) coresCommand() *exec.Cmd {
	return exec.Command("wmic", "cpu", "get", "NumberOfCores", "/value")
}

// parseCores reads the first NumberOfCores=N line; wmic prints one per socket.
func (windowsPlatform) parseCores(output string) (int, error) {
	for line := range strings.SplitSeq(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if found && strings.EqualFold(key, "NumberOfCores") {
			return strconv.Atoi(strings.TrimSpace(value))
		}
	}
	return 0, fmt.Errorf("NumberOfCores not found in wmic output")
}
