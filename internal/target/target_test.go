package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	localTarget := NewLocalTarget()
	require.NotNil(t, localTarget)
	assert.NotEmpty(t, localTarget.GetName())
	remoteTarget := NewRemoteTarget("label", "hostname", "22", "user", "key")
	require.NotNil(t, remoteTarget)
	assert.Equal(t, "label", remoteTarget.GetName())
	assert.Equal(t, "hostname", NewRemoteTarget("", "hostname", "", "", "").GetName())
}

func TestLocalRunCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	localTarget := NewLocalTarget()
	stdout, _, exitCode, err := localTarget.RunCommand(exec.Command("sh", "-c", "echo ptu"), 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "ptu\n", stdout)

	_, _, exitCode, err = localTarget.RunCommand(exec.Command("sh", "-c", "exit 3"), 5, false)
	assert.Error(t, err)
	assert.Equal(t, 3, exitCode)
}

func TestLocalRunCommandTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, _, exitCode, err := NewLocalTarget().RunCommand(exec.Command("sh", "-c", "sleep 5"), 1, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandTimeout))
	assert.Equal(t, -1, exitCode)
}

func TestSudoReadsStdin(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{args: []string{"sudo", "-S", "bash", "-c", "ls"}, want: true},
		{args: []string{"sudo", "-kS", "true"}, want: true},
		{args: []string{"sudo", "-kn", "true"}, want: false},
		{args: []string{"sudo", "--preserve-env=S", "true"}, want: false},
		{args: []string{"sudo", "-S"}, want: false},
		{args: []string{"bash", "-S", "x"}, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sudoReadsStdin(tt.args), "%v", tt.args)
	}
}

func TestLocalPullFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ptu_log.csv")
	require.NoError(t, os.WriteFile(src, []byte("Idx,Device\n"), 0600))
	dstDir := t.TempDir()
	require.NoError(t, NewLocalTarget().PullFile(src, dstDir))
	_, err := os.Stat(filepath.Join(dstDir, "ptu_log.csv"))
	assert.NoError(t, err)
}

func TestRemoteSSHCommandQuotesArguments(t *testing.T) {
	remoteTarget := NewRemoteTarget("sut1", "10.0.0.5", "2222", "lab", "/home/lab/.ssh/id_rsa")
	cmd := remoteTarget.prepareLocalCommand(exec.Command("bash", "-c", "cd /opt/ptu && sh ./killptu.sh"), true)
	args := cmd.Args
	require.NotEmpty(t, args)
	assert.Equal(t, "ssh", args[0])
	assert.True(t, slices.Contains(args, "lab@10.0.0.5"))
	assert.True(t, slices.Contains(args, "-p"))
	assert.True(t, slices.Contains(args, "/home/lab/.ssh/id_rsa"))
	sep := slices.Index(args, "--")
	require.Greater(t, sep, 0)
	assert.Equal(t, []string{"bash", "-c", `"cd /opt/ptu && sh ./killptu.sh"`}, args[sep+1:])
}

func TestRemoteSCPCommand(t *testing.T) {
	remoteTarget := NewRemoteTarget("", "sut2", "22", "", "")
	args := remoteTarget.prepareSCPCommand("/opt/ptu/ptu_log.csv", "/tmp/out")
	assert.Equal(t, "scp", args[0])
	assert.True(t, slices.Contains(args, "-P"))
	assert.Equal(t, []string{"sut2:/opt/ptu/ptu_log.csv", "/tmp/out"}, args[len(args)-2:])
}

func TestRemoteSshPassWrapping(t *testing.T) {
	remoteTarget := NewRemoteTarget("", "sut3", "", "lab", "")
	remoteTarget.SetSshPass("secret")
	remoteTarget.SetSshPassPath("/tmp/sshpass")
	cmd := remoteTarget.prepareLocalCommand(exec.Command("ps", "-ef"), false)
	assert.Equal(t, "/tmp/sshpass", cmd.Args[0])
	assert.Equal(t, []string{"-e", "--", "ssh"}, cmd.Args[1:4])
	assert.True(t, slices.Contains(cmd.Env, "SSHPASS=secret"))
	assert.False(t, slices.Contains(cmd.Args, "BatchMode=yes"))
	assert.True(t, remoteTarget.UsesPassword())
	assert.False(t, NewRemoteTarget("", "sut3", "", "lab", "~/.ssh/id_rsa").UsesPassword())
}

func TestRemoteIsSuperUser(t *testing.T) {
	assert.True(t, NewRemoteTarget("", "h", "", "root", "").IsSuperUser())
	assert.False(t, NewRemoteTarget("", "h", "", "lab", "").IsSuperUser())
}
