package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"ptustress/internal/ptu"
	"ptustress/internal/report"
	"ptustress/internal/util"

	"gopkg.in/yaml.v2"
)

// StressOptions describes one stress run. A profile file holds the same fields so a run
// can be repeated exactly.
type StressOptions struct {
	Percent        *int          `yaml:"percent"`          // share of each socket's cores, nil leaves -cpucore off
	CPUMask        string        `yaml:"cpu_mask"`         // 0x1..0x8 or ALL, empty leaves -cpu off
	Duration       time.Duration `yaml:"duration"`         // how long the tool runs before it is killed
	Poll           time.Duration `yaml:"poll"`             // interval between running probes
	OS             string        `yaml:"os"`               // linux or windows
	ToolDir        string        `yaml:"tool_dir"`         // directory on the target holding the tool
	ProcessName    string        `yaml:"process_name"`     // process table name of the tool
	CoresPerSocket int           `yaml:"cores_per_socket"` // zero queries the target
	Settle         time.Duration `yaml:"settle"`           // wait between launch and the first probe
	Elevate        bool          `yaml:"elevate"`          // launch and kill through sudo
	LogName        string        `yaml:"log_name"`         // -logname value, generated per run when empty
	LogFile        string        `yaml:"log_file"`         // CSV path on the target, <tool_dir>/<log_name>.csv when empty
	Template       string        `yaml:"template"`         // base command template
	CoreTest       int           `yaml:"core_test"`        // -ct test number
	MemTest        int           `yaml:"mem_test"`         // -mt test number
	SampleInterval time.Duration `yaml:"sample_interval"`  // spacing of logged samples, used to timestamp exports
	Columns        []string      `yaml:"columns"`          // device:column, every column when empty
	Assertions     []string      `yaml:"assertions"`       // device:column:expression
	Formats        []string      `yaml:"formats"`          // report formats
}

// DefaultStressOptions returns the options used when neither a profile nor flags override them.
func DefaultStressOptions() StressOptions {
	cfg := ptu.DefaultConfig()
	return StressOptions{
		Duration:       60 * time.Second,
		Poll:           5 * time.Second,
		OS:             cfg.OS.String(),
		ToolDir:        cfg.ToolDir,
		ProcessName:    cfg.ProcessName,
		Settle:         cfg.SettleTime,
		SampleInterval: time.Second,
		Formats:        []string{report.FormatAll},
	}
}

// LoadProfile reads a YAML stress profile. Fields missing from the file keep their defaults.
func LoadProfile(profilePath string) (StressOptions, error) {
	profileBytes, err := os.ReadFile(profilePath)
	if err != nil {
		return StressOptions{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return parseProfile(profileBytes)
}

func parseProfile(profileBytes []byte) (StressOptions, error) {
	opts := DefaultStressOptions()
	if err := yaml.UnmarshalStrict(profileBytes, &opts); err != nil {
		return StressOptions{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return opts, nil
}

// Validate checks the options that can be checked without a target.
func (o StressOptions) Validate() error {
	if o.Duration <= 0 {
		return fmt.Errorf("duration must be greater than 0")
	}
	if o.Poll <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}
	if o.Settle < 0 {
		return fmt.Errorf("settle time must not be negative")
	}
	if o.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be greater than 0")
	}
	// an explicit zero is rejected, only an absent percent leaves -cpucore off
	if o.Percent != nil && (*o.Percent < 1 || *o.Percent > 100) {
		return fmt.Errorf("percent must be between 1 and 100, got %d", *o.Percent)
	}
	if o.CoresPerSocket < 0 {
		return fmt.Errorf("cores per socket must not be negative")
	}
	if o.CoreTest < 0 || o.MemTest < 0 {
		return fmt.Errorf("test numbers must not be negative")
	}
	// the tool directory passes through the remote shell, cmd.exe included
	if o.ToolDir != "" && !util.IsValidDirectoryName(o.ToolDir) {
		return fmt.Errorf("tool directory %q may only contain letters, digits, and . _ / \\ : -", o.ToolDir)
	}
	if _, err := ptu.ParseOperatingSystem(o.OS); err != nil {
		return err
	}
	if _, err := report.ExpandFormats(o.Formats); err != nil {
		return err
	}
	if _, err := ParseColumnSpecs(o.Columns); err != nil {
		return err
	}
	return nil
}

// PTUConfig converts the options to the orchestrator configuration.
func (o StressOptions) PTUConfig() (ptu.Config, error) {
	operatingSystem, err := ptu.ParseOperatingSystem(o.OS)
	if err != nil {
		return ptu.Config{}, err
	}
	cfg := ptu.DefaultConfig()
	cfg.OS = operatingSystem
	if o.ToolDir != "" {
		cfg.ToolDir = o.ToolDir
	}
	if o.ProcessName != "" {
		cfg.ProcessName = o.ProcessName
	}
	cfg.CoresPerSocket = o.CoresPerSocket
	cfg.SettleTime = o.Settle
	cfg.Elevate = o.Elevate
	return cfg, nil
}

// RemoteLogFile returns the path of the tool's CSV log on the target.
func (o StressOptions) RemoteLogFile(logName string) string {
	if o.LogFile != "" {
		return o.LogFile
	}
	fileName := logName + ".csv"
	toolDir := o.ToolDir
	if toolDir == "" {
		toolDir = "."
	}
	if strings.EqualFold(o.OS, ptu.Windows.String()) {
		return strings.TrimRight(toolDir, `\/`) + `\` + fileName
	}
	return path.Join(toolDir, fileName)
}

// ColumnSpec names one column of one device in the telemetry log.
type ColumnSpec struct {
	Device string
	Column string
}

func (c ColumnSpec) String() string {
	return c.Device + ":" + c.Column
}

// ParseColumnSpecs parses "device:column" strings.
func ParseColumnSpecs(specs []string) ([]ColumnSpec, error) {
	var columns []ColumnSpec
	for _, spec := range specs {
		device, column, found := strings.Cut(spec, ":")
		device = strings.TrimSpace(device)
		column = strings.TrimSpace(column)
		if !found || device == "" || column == "" {
			return nil, fmt.Errorf("column %q must be in the form device:column", spec)
		}
		columns = append(columns, ColumnSpec{Device: device, Column: column})
	}
	return columns, nil
}
