package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os/exec"
	"path"
	"regexp"
	"strconv"
	"strings"

	"ptustress/internal/util"
)

type linuxPlatform struct{}

func (linuxPlatform) executable(processName string) string {
	return "./" + processName
}

func (linuxPlatform) shell(script string, elevate bool) *exec.Cmd {
	if elevate {
		return exec.Command("sudo", "-S", "bash", "-c", script)
	}
	return exec.Command("bash", "-c", script)
}

// launchCommand starts the command line in the background, detached from the session so
// that the ssh connection can close while PTU keeps running.
func (p linuxPlatform) launchCommand(workDir string, commandLine string, elevate bool) *exec.Cmd {
	script := fmt.Sprintf("cd %s && nohup %s >/dev/null 2>&1 &", util.ShellQuote(workDir), commandLine)
	return p.shell(script, elevate)
}

func (linuxPlatform) probeCommand(string) *exec.Cmd {
	return exec.Command("ps", "-e", "-o", "args=")
}

// isRunning looks for a process whose executable is named processName, e.g.
// "./ptu -mon -log ..." or "/opt/ptu/ptu -y".
func (linuxPlatform) isRunning(probeOutput string, processName string) bool {
	for line := range strings.SplitSeq(probeOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if path.Base(fields[0]) == processName {
			return true
		}
	}
	return false
}

func (p linuxPlatform) killCommand(toolDir string, _ string, elevate bool) *exec.Cmd {
	script := fmt.Sprintf("cd %s && sh ./killptu.sh", util.ShellQuote(toolDir))
	return p.shell(script, elevate)
}

func (linuxPlatform) coresCommand() *exec.Cmd {
	return exec.Command("lscpu")
}

var lscpuCoresRegex = regexp.MustCompile(`(?m)^Core\(s\) per socket:\s*(\d+)\s*$`)

func (linuxPlatform) parseCores(output string) (int, error) {
	match := lscpuCoresRegex.FindStringSubmatch(output)
	if match == nil {
		return 0, fmt.Errorf("'Core(s) per socket' not found in lscpu output")
	}
	return strconv.Atoi(match[1])
}
