// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package stress

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

func TestResolveOptions(t *testing.T) {
	t.Cleanup(func() {
		flagProfile = ""
		flagDuration = 60
		flagPercent = 0
	})

	// without a profile the flag defaults apply
	opts, err := resolveOptions(Cmd)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, opts.Duration)
	assert.Equal(t, 5*time.Second, opts.Poll)
	assert.Equal(t, ptu.DefaultCommandTemplate, opts.Template)
	assert.Equal(t, []string{report.FormatAll}, opts.Formats)
	assert.Nil(t, opts.Percent, "percent is unset unless given")
	require.NoError(t, opts.Validate())

	// the profile supplies values, changed flags override them
	profilePath := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte("percent: 25\nduration: 2m\ntool_dir: /opt/ptu\nassertions:\n  - \"CPU0:Power:max < 300\"\n"), 0644))
	require.NoError(t, Cmd.Flags().Set(flagProfileName, profilePath))
	require.NoError(t, Cmd.Flags().Set(flagDurationName, "30"))
	opts, err = resolveOptions(Cmd)
	require.NoError(t, err)
	require.NotNil(t, opts.Percent)
	assert.Equal(t, 25, *opts.Percent)
	assert.Equal(t, 30*time.Second, opts.Duration)
	assert.Equal(t, "/opt/ptu", opts.ToolDir)
	assert.Equal(t, 5*time.Second, opts.Poll)
	assert.Equal(t, []string{"CPU0:Power:max < 300"}, opts.Assertions)
	assert.Empty(t, opts.Template, "an empty template renders the default command")
}

func TestValidateFlagsPercent(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"0", true},
		{"-1", true},
		{"101", true},
		{"1", false},
		{"100", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Cleanup(func() {
				flagPercent = 0
				Cmd.Flags().Lookup(flagPercentName).Changed = false
			})
			require.NoError(t, Cmd.Flags().Set(flagPercentName, tt.value))
			err := validateFlags(Cmd, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveOptionsBadProfile(t *testing.T) {
	t.Cleanup(func() { flagProfile = "" })
	flagProfile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := resolveOptions(Cmd)
	assert.Error(t, err)
}
