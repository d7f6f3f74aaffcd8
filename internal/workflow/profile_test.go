package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ptustress/internal/ptu"
	"ptustress/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(`percent: 50
cpu_mask: ALL
duration: 10m
os: windows
tool_dir: C:\ptu
core_test: 3
columns:
  - CPU0:Power
assertions:
  - "CPU0:Power:max < 300"
`), 0644))
	opts, err := LoadProfile(profilePath)
	require.NoError(t, err)
	require.NotNil(t, opts.Percent)
	assert.Equal(t, 50, *opts.Percent)
	assert.Equal(t, "ALL", opts.CPUMask)
	assert.Equal(t, 10*time.Minute, opts.Duration)
	assert.Equal(t, 3, opts.CoreTest)
	assert.Equal(t, []string{"CPU0:Power"}, opts.Columns)
	assert.Equal(t, []string{"CPU0:Power:max < 300"}, opts.Assertions)
	// fields missing from the profile keep their defaults
	defaults := DefaultStressOptions()
	assert.Equal(t, defaults.Poll, opts.Poll)
	assert.Equal(t, defaults.Settle, opts.Settle)
	assert.Equal(t, []string{report.FormatAll}, opts.Formats)
	assert.NoError(t, opts.Validate())
	assert.Equal(t, `C:\ptu\run1.csv`, opts.RemoteLogFile("run1"))

	cfg, err := opts.PTUConfig()
	require.NoError(t, err)
	assert.Equal(t, ptu.Windows, cfg.OS)
	assert.Equal(t, `C:\ptu`, cfg.ToolDir)
}

func intPtr(i int) *int { return &i }

func TestProfilePercent(t *testing.T) {
	opts, err := parseProfile([]byte("duration: 1m\n"))
	require.NoError(t, err)
	assert.Nil(t, opts.Percent)
	assert.NoError(t, opts.Validate())

	opts, err = parseProfile([]byte("percent: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, opts.Percent)
	assert.Error(t, opts.Validate(), "a percent written as zero selects no cores")
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = parseProfile([]byte("percentage: 50\n"))
	assert.Error(t, err, "unknown fields are rejected")
	_, err = parseProfile([]byte("duration: soon\n"))
	assert.Error(t, err)
}

func TestStressOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*StressOptions)
		wantErr bool
	}{
		{name: "defaults", modify: func(o *StressOptions) {}},
		{name: "zero duration", modify: func(o *StressOptions) { o.Duration = 0 }, wantErr: true},
		{name: "zero poll", modify: func(o *StressOptions) { o.Poll = 0 }, wantErr: true},
		{name: "negative settle", modify: func(o *StressOptions) { o.Settle = -time.Second }, wantErr: true},
		{name: "percent above 100", modify: func(o *StressOptions) { o.Percent = intPtr(101) }, wantErr: true},
		{name: "percent 100", modify: func(o *StressOptions) { o.Percent = intPtr(100) }},
		{name: "percent 1", modify: func(o *StressOptions) { o.Percent = intPtr(1) }},
		{name: "percent 0", modify: func(o *StressOptions) { o.Percent = intPtr(0) }, wantErr: true},
		{name: "negative percent", modify: func(o *StressOptions) { o.Percent = intPtr(-5) }, wantErr: true},
		{name: "unknown os", modify: func(o *StressOptions) { o.OS = "plan9" }, wantErr: true},
		{name: "unknown format", modify: func(o *StressOptions) { o.Formats = []string{"pdf"} }, wantErr: true},
		{name: "bad column", modify: func(o *StressOptions) { o.Columns = []string{"Power"} }, wantErr: true},
		{name: "windows tool dir", modify: func(o *StressOptions) { o.ToolDir = `C:\ptu` }},
		{name: "tool dir with shell characters", modify: func(o *StressOptions) { o.ToolDir = "/opt/ptu; reboot" }, wantErr: true},
		{name: "negative test number", modify: func(o *StressOptions) { o.MemTest = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultStressOptions()
			tt.modify(&opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRemoteLogFile(t *testing.T) {
	opts := DefaultStressOptions()
	assert.Equal(t, "run1.csv", opts.RemoteLogFile("run1"))
	opts.ToolDir = "/opt/ptu"
	assert.Equal(t, "/opt/ptu/run1.csv", opts.RemoteLogFile("run1"))
	opts.LogFile = "/var/log/ptu.csv"
	assert.Equal(t, "/var/log/ptu.csv", opts.RemoteLogFile("run1"))
}

func TestParseColumnSpecs(t *testing.T) {
	columns, err := ParseColumnSpecs([]string{"CPU0:Power", " CPU1 : Temp:Max "})
	require.NoError(t, err)
	assert.Equal(t, []ColumnSpec{{Device: "CPU0", Column: "Power"}, {Device: "CPU1", Column: "Temp:Max"}}, columns)
	assert.Equal(t, "CPU0:Power", columns[0].String())
	for _, bad := range []string{"CPU0", ":Power", "CPU0:", ""} {
		_, err := ParseColumnSpecs([]string{bad})
		assert.Error(t, err, bad)
	}
}
