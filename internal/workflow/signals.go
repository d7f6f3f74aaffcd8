// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package workflow

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ptustress/internal/progress"
	"ptustress/internal/ptu"
	"ptustress/internal/util"
)

// killTimeout bounds the forced cleanup after a second signal.
const killTimeout = 30 * time.Second

// configureSignalHandler sets up a signal handler to catch SIGINT and SIGTERM.
//
// The first signal cancels the run. Each target's run then kills the stress tool, pulls
// the telemetry collected so far, and writes its reports. A second signal kills the
// stress tool on every target concurrently and exits.
//
// When ptustress is run in the background or disowned and then receives SIGINT, e.g.,
// from a script, the signal is also forwarded to our children (ssh sessions).
//
// The returned function stops the handler.
func configureSignalHandler(cancel context.CancelFunc, orchestrators []*ptu.Orchestrator, statusFunc progress.MultiSpinnerUpdateFunc) (stop func()) {
	sigChannel := make(chan os.Signal, 2)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChannel:
			slog.Info("received signal, stopping stress runs", slog.String("signal", sig.String()))
			for _, o := range orchestrators {
				if statusFunc != nil {
					_ = statusFunc(o.TargetName(), "Signal received, stopping stress tool...")
				}
			}
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigChannel:
			slog.Warn("received second signal, killing stress tool on all targets", slog.String("signal", sig.String()))
			killAll(orchestrators, statusFunc)
			util.SignalChildren(syscall.SIGINT)
			os.Exit(1)
		case <-done:
			return
		}
	}()
	return func() {
		signal.Stop(sigChannel)
		close(done)
	}
}

// killAll kills the stress tool on every target concurrently and waits for the kills to
// finish or for killTimeout.
func killAll(orchestrators []*ptu.Orchestrator, statusFunc progress.MultiSpinnerUpdateFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	var wg sync.WaitGroup
	for _, o := range orchestrators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopped := o.Kill(ctx)
			if statusFunc != nil {
				if stopped {
					_ = statusFunc(o.TargetName(), "stress tool killed")
				} else {
					_ = statusFunc(o.TargetName(), "stress tool may still be running")
				}
			}
		}()
	}
	wg.Wait()
}
