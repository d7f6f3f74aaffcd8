package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidHex(t *testing.T) {
	tests := []struct {
		hexStr   string
		expected bool
	}{
		{"0x1a2b3c", true},  // Valid hex with "0x" prefix
		{"0X1A2B3C", true},  // Valid hex with "0X" prefix
		{"1a2b3c", true},    // Valid hex without prefix
		{"0x", false},       // Invalid hex, only prefix
		{"", false},         // Empty string
		{"0xGHIJKL", false}, // Invalid hex with non-hex characters
		{" 12345 ", false},  // Invalid hex with spaces
		{"0x-1", false},     // Sign is not a hex character
		{"0xffffffffffffffffffffffffffffffff", true},
	}

	for _, test := range tests {
		result := IsValidHex(test.hexStr)
		if result != test.expected {
			t.Errorf("expected %v, got %v for hex string %s", test.expected, result, test.hexStr)
		}
	}
}

func TestHexSetBits(t *testing.T) {
	tests := []struct {
		hexStr    string
		expected  int
		expectErr bool
	}{
		{"0x3f", 6, false},
		{"0x1", 1, false},
		{"0x0", 0, false},
		{"0xffffffffffffffffffff", 80, false},
		{"0xa", 2, false},
		{"zz", 0, true},
	}
	for _, test := range tests {
		result, err := HexSetBits(test.hexStr)
		if test.expectErr {
			assert.Error(t, err, test.hexStr)
			continue
		}
		require.NoError(t, err, test.hexStr)
		assert.Equal(t, test.expected, result, test.hexStr)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		arg      string
		expected string
	}{
		{"ps", "ps"},
		{"-ef", "-ef"},
		{"/opt/ptu/killptu.sh", "/opt/ptu/killptu.sh"},
		{"IMAGENAME eq ptu*", `"IMAGENAME eq ptu*"`},
		{"cd /opt/ptu && ./ptu", `"cd /opt/ptu && ./ptu"`},
		{`say "hi" $HOME`, `"say \"hi\" \$HOME"`},
		{"", `""`},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, ShellQuote(test.arg))
	}
}

func TestFileAndDirectoryExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ptu.csv")
	require.NoError(t, os.WriteFile(file, []byte("Idx,Device\n"), 0600))

	exists, err := FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = FileExists(filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = FileExists(dir)
	assert.Error(t, err)

	exists, err = DirectoryExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = DirectoryExists(file)
	assert.Error(t, err)
}

func TestCopyFileIntoDirectory(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "ptu_log.csv")
	require.NoError(t, os.WriteFile(src, []byte("Idx,Device,Power\n1,CPU0,45.2\n"), 0640))

	require.NoError(t, CopyFile(src, dstDir))

	copied, err := os.ReadFile(filepath.Join(dstDir, "ptu_log.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Idx,Device,Power\n1,CPU0,45.2\n", string(copied))
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateDirectoryIfNotExists(dir, 0755))
	require.NoError(t, CreateDirectoryIfNotExists(dir, 0755))
	exists, err := DirectoryExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIsValidDirectoryName(t *testing.T) {
	assert.True(t, IsValidDirectoryName("/opt/intel/ptu"))
	assert.True(t, IsValidDirectoryName(`C:\ptu`))
	assert.False(t, IsValidDirectoryName("/opt/ptu; rm -rf /"))
	assert.False(t, IsValidDirectoryName(""))
}
