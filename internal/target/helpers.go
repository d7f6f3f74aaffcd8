package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// runLocal runs cmd on the local host, feeding input to its stdin. A timeout of zero
// seconds means no timeout. exitCode is only meaningful when the command ran to an exit.
func runLocal(cmd *exec.Cmd, input string, timeout int) (stdout string, stderr string, exitCode int, err error) {
	logInput := ""
	if input != "" {
		logInput = "******"
	}
	slog.Debug("running local command", slog.String("cmd", cmd.String()), slog.String("input", logInput), slog.Int("timeout", timeout))
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	run := exec.CommandContext(ctx, cmd.Path, cmd.Args[1:]...) // #nosec G204 // nosemgrep
	run.Env = cmd.Env
	run.Dir = cmd.Dir
	if input != "" {
		run.Stdin = strings.NewReader(input)
	}
	var outbuf, errbuf strings.Builder
	run.Stdout = &outbuf
	run.Stderr = &errbuf
	err = run.Run()
	stdout = outbuf.String()
	stderr = errbuf.String()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, -1, fmt.Errorf("%w after %ds: %s", ErrCommandTimeout, timeout, cmd.String())
	}
	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			exitCode = exitError.ExitCode()
		}
	}
	return
}

// sudoReadsStdin reports whether args invoke sudo with -S, i.e., sudo takes the
// password from stdin.
func sudoReadsStdin(args []string) bool {
	if len(args) < 3 || args[0] != "sudo" {
		return false
	}
	return strings.HasPrefix(args[1], "-") && !strings.HasPrefix(args[1], "--") && strings.Contains(args[1], "S")
}
