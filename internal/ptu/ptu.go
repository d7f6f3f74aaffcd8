/*
Package ptu drives the Power Thermal Utility (PTU) stress tool on a system-under-test.

An Orchestrator translates a requested core-coverage percentage and CPU mask into a PTU
command line, launches it detached on the target, probes the process table to confirm it
is alive and, later, kills it.
*/
package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	// ErrUnsupportedConfiguration is returned when a percentage, CPU mask or core count
	// cannot be turned into a PTU command line. No process is started.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	// ErrLaunchFailed is returned when the tool could not be started or was not found in
	// the process table after the settle time.
	ErrLaunchFailed = errors.New("launch failed")
)

// OperatingSystem of the system-under-test.
type OperatingSystem int

const (
	Linux OperatingSystem = iota
	Windows
)

func (o OperatingSystem) String() string {
	switch o {
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	}
	return fmt.Sprintf("OperatingSystem(%d)", int(o))
}

// ParseOperatingSystem converts "linux" or "windows" (any case) to an OperatingSystem.
func ParseOperatingSystem(s string) (OperatingSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux", "":
		return Linux, nil
	case "windows":
		return Windows, nil
	}
	return Linux, fmt.Errorf("%w: operating system %q, expected linux or windows", ErrUnsupportedConfiguration, s)
}

// Runner runs commands on the system-under-test. target.Target satisfies it.
type Runner interface {
	RunCommand(cmd *exec.Cmd, timeout int, reuseSSHConnection bool) (stdout string, stderr string, exitCode int, err error)
	GetName() string
}

// Config holds the orchestrator settings. Use DefaultConfig for the documented defaults.
type Config struct {
	OS             OperatingSystem
	ToolDir        string        // directory holding the PTU executable and killptu.sh
	ProcessName    string        // name searched for in the process table
	CoresPerSocket int           // zero means query the target
	SettleTime     time.Duration // wait between launch and the running probe
	AssumeYes      bool          // append -y so PTU doesn't prompt
	Elevate        bool          // run launch and kill through sudo (Linux only)
	KillRetries    int           // kill attempts before giving up
	KillInterval   time.Duration // wait between kill attempts
	CommandTimeout int           // seconds, applied to every command except the launch itself
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		OS:             Linux,
		ToolDir:        ".",
		ProcessName:    "ptu",
		SettleTime:     30 * time.Second,
		AssumeYes:      true,
		KillRetries:    3,
		KillInterval:   5 * time.Second,
		CommandTimeout: 60,
	}
}

// MaxCPUMaskSocket is the highest socket selector accepted by SetCPUMask.
const MaxCPUMaskSocket = 8

// cpuMaskAll selects every socket.
const cpuMaskAll = "ALL"

var validCPUMasks = func() mapset.Set[string] {
	s := mapset.NewThreadUnsafeSet(cpuMaskAll)
	for i := 1; i <= MaxCPUMaskSocket; i++ {
		s.Add(fmt.Sprintf("0x%x", i))
	}
	return s
}()

// Orchestrator controls one PTU instance on one target. The target is assumed to be owned
// exclusively by the orchestrator while a stress run is in progress.
type Orchestrator struct {
	runner   Runner
	cfg      Config
	platform platform

	mu      sync.Mutex
	percent int    // zero when unset
	cpuMask string // empty when unset
	cores   int    // cached cores per socket
}

// NewOrchestrator creates an Orchestrator for the given runner.
func NewOrchestrator(runner Runner, cfg Config) (*Orchestrator, error) {
	if runner == nil {
		return nil, fmt.Errorf("%w: runner is required", ErrUnsupportedConfiguration)
	}
	p, err := newPlatform(cfg.OS)
	if err != nil {
		return nil, err
	}
	if cfg.ProcessName == "" {
		cfg.ProcessName = "ptu"
	}
	if cfg.ToolDir == "" {
		cfg.ToolDir = "."
	}
	if cfg.KillRetries < 1 {
		cfg.KillRetries = 1
	}
	if cfg.CoresPerSocket < 0 {
		return nil, fmt.Errorf("%w: cores per socket must not be negative, got %d", ErrUnsupportedConfiguration, cfg.CoresPerSocket)
	}
	return &Orchestrator{
		runner:   runner,
		cfg:      cfg,
		platform: p,
		cores:    cfg.CoresPerSocket,
	}, nil
}

// Config returns the orchestrator's effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// TargetName is the name of the target the orchestrator drives.
func (o *Orchestrator) TargetName() string {
	return o.runner.GetName()
}

// SetPercentCoresToStress sets the share of each socket's cores to stress, 1 to 100 inclusive.
func (o *Orchestrator) SetPercentCoresToStress(percent int) error {
	if percent < 1 {
		return fmt.Errorf("%w: percent of cores to stress must be at least 1, got %d", ErrUnsupportedConfiguration, percent)
	}
	if percent > 100 {
		return fmt.Errorf("%w: percent of cores to stress must be at most 100, got %d", ErrUnsupportedConfiguration, percent)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.percent = percent
	return nil
}

// SetCPUMask selects the sockets to stress: one of 0x1 through 0x8, or ALL.
func (o *Orchestrator) SetCPUMask(mask string) error {
	if err := ValidateCPUMask(mask); err != nil {
		return err
	}
	normalized := normalizeCPUMask(mask)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cpuMask = normalized
	return nil
}

// PercentCoresToStress returns the configured percentage, zero when unset.
func (o *Orchestrator) PercentCoresToStress() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.percent
}

// CPUMask returns the configured CPU mask, empty when unset.
func (o *Orchestrator) CPUMask() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cpuMask
}

// ValidateCPUMask checks that mask is one of 0x1 through 0x8, or ALL, in any case.
func ValidateCPUMask(mask string) error {
	if !validCPUMasks.Contains(normalizeCPUMask(mask)) {
		return fmt.Errorf("%w: cpu mask %q, expected one of 0x1..0x%x or %s", ErrUnsupportedConfiguration, mask, MaxCPUMaskSocket, cpuMaskAll)
	}
	return nil
}

func normalizeCPUMask(mask string) string {
	mask = strings.TrimSpace(mask)
	if strings.EqualFold(mask, cpuMaskAll) {
		return cpuMaskAll
	}
	return strings.ToLower(mask)
}
