package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"ptustress/internal/util"
)

// RemoteTarget runs commands on a host reached over ssh.
type RemoteTarget struct {
	name        string
	host        string
	port        string
	user        string
	key         string
	sshPass     string
	sshpassPath string
	canElevate  elevation
}

// NewRemoteTarget creates a RemoteTarget. An empty name defaults to the host.
func NewRemoteTarget(name string, host string, port string, user string, key string) *RemoteTarget {
	return &RemoteTarget{
		name: name,
		host: host,
		port: port,
		user: user,
		key:  key,
	}
}

// SetSshPassPath sets the path to the sshpass binary (RemoteTarget only).
func (t *RemoteTarget) SetSshPassPath(sshpassPath string) {
	t.sshpassPath = sshpassPath
}

// SetSshPass sets the ssh password for the target (RemoteTarget only).
func (t *RemoteTarget) SetSshPass(sshPass string) {
	t.sshPass = sshPass
}

// RunCommand executes a command on the remote target using SSH. It prepares the
// local command to be executed, optionally reusing an existing SSH connection,
// and runs it with a specified timeout.
//
// The remote shell re-parses the command line, so every argument of cmd is
// quoted before it is handed to ssh.
func (t *RemoteTarget) RunCommand(cmd *exec.Cmd, timeout int, reuseSSHConnection bool) (stdout string, stderr string, exitCode int, err error) {
	localCommand := t.prepareLocalCommand(cmd, reuseSSHConnection)
	return runLocal(localCommand, "", timeout)
}

// PullFile copies srcPath on the remote target into dstDir on the local system using scp.
func (t *RemoteTarget) PullFile(srcPath string, dstDir string) error {
	stdout, stderr, exitCode, err := t.prepareAndRunSCPCommand(srcPath, dstDir)
	slog.Debug("pull file", slog.String("srcPath", srcPath), slog.String("dstDir", dstDir), slog.String("stdout", stdout), slog.String("stderr", stderr), slog.Int("exitCode", exitCode))
	if err != nil {
		return fmt.Errorf("failed to pull %s from %s: %w", srcPath, t.GetName(), err)
	}
	return nil
}

// CanConnect runs a trivial command on the target to confirm that ssh works.
func (t *RemoteTarget) CanConnect() bool {
	cmd := exec.Command("exit", "0")
	_, _, _, err := t.RunCommand(cmd, 5, true)
	return err == nil
}

// CanElevatePrivileges (on RemoteTarget) checks if the user name is root or if sudo can be used to elevate privileges.
// Note that the sudo password is not used for this check. Password-less sudo is required.
func (t *RemoteTarget) CanElevatePrivileges() bool {
	if t.canElevate != elevationUnknown {
		return t.canElevate == elevationAllowed
	}
	if t.IsSuperUser() {
		return t.canElevate.set(true)
	}
	_, _, _, err := t.RunCommand(exec.Command("sudo", "-kn", "true"), 10, true)
	return t.canElevate.set(err == nil)
}

// IsSuperUser reports whether the ssh user is root.
func (t *RemoteTarget) IsSuperUser() bool {
	return t.user == "root"
}

// GetName returns the target's name, or its host if no name was given.
func (t *RemoteTarget) GetName() (host string) {
	if t.name == "" {
		return t.host
	}
	return t.name
}

func (t *RemoteTarget) prepareSSHFlags(scp bool, useControlMaster bool, prompt bool) (flags []string) {
	flags = []string{
		"-2",
		"-o",
		"UserKnownHostsFile=/dev/null",
		"-o",
		"StrictHostKeyChecking=no",
		"-o",
		"ConnectTimeout=10",
		"-o",
		"GSSAPIAuthentication=no",
		"-o",
		"ServerAliveInterval=30",
		"-o",
		"ServerAliveCountMax=10", // 30 * 10 = maximum 300 seconds before disconnect on no data
		"-o",
		"LogLevel=ERROR",
	}
	// turn on batch mode to avoid prompts for passwords
	if !prompt {
		flags = append(flags, "-o", "BatchMode=yes")
	}
	// when using a control master, a long-running remote program doesn't get terminated when the local ssh client is terminated
	if useControlMaster {
		flags = append(flags,
			"-o",
			"ControlPath="+filepath.Join(os.TempDir(), fmt.Sprintf("control-%%h-%%p-%%r-%d", os.Getpid())),
			"-o",
			"ControlMaster=auto",
			"-o",
			"ControlPersist=1m",
		)
	}
	if t.key != "" {
		flags = append(flags,
			"-o",
			"PreferredAuthentications=publickey",
			"-o",
			"PasswordAuthentication=no",
			"-i",
			t.key,
		)
	}
	if t.port != "" {
		if scp {
			flags = append(flags, "-P")
		} else {
			flags = append(flags, "-p")
		}
		flags = append(flags, t.port)
	}
	return
}

func (t *RemoteTarget) destination() string {
	if t.user != "" {
		return t.user + "@" + t.host
	}
	return t.host
}

func (t *RemoteTarget) prepareSSHCommand(command []string, useControlMaster bool, prompt bool) []string {
	var cmd []string
	cmd = append(cmd, "ssh")
	cmd = append(cmd, t.prepareSSHFlags(false, useControlMaster, prompt)...)
	cmd = append(cmd, t.destination())
	cmd = append(cmd, "--")
	for _, arg := range command {
		cmd = append(cmd, util.ShellQuote(arg))
	}
	return cmd
}

func (t *RemoteTarget) prepareSCPCommand(src string, dstDir string) []string {
	var cmd []string
	cmd = append(cmd, "scp")
	cmd = append(cmd, t.prepareSSHFlags(true, true, false)...)
	cmd = append(cmd, t.destination()+":"+src)
	cmd = append(cmd, dstDir)
	return cmd
}

// UsesPassword reports whether ssh authenticates with a password through sshpass.
func (t *RemoteTarget) UsesPassword() bool {
	return t.usePass()
}

func (t *RemoteTarget) usePass() bool {
	return t.key == "" && t.sshPass != ""
}

// wrapWithSshPass returns the local command that runs command, optionally under sshpass
func (t *RemoteTarget) wrapWithSshPass(command []string) *exec.Cmd {
	var name string
	var args []string
	if t.usePass() {
		name = t.sshpassPath
		args = append([]string{"-e", "--"}, command...)
	} else {
		name = command[0]
		args = command[1:]
	}
	localCommand := exec.Command(name, args...) // #nosec G204
	if t.usePass() {
		localCommand.Env = append(os.Environ(), "SSHPASS="+t.sshPass)
	}
	return localCommand
}

func (t *RemoteTarget) prepareLocalCommand(cmd *exec.Cmd, useControlMaster bool) *exec.Cmd {
	return t.wrapWithSshPass(t.prepareSSHCommand(cmd.Args, useControlMaster, t.usePass()))
}

func (t *RemoteTarget) prepareAndRunSCPCommand(srcPath string, dstDir string) (stdout string, stderr string, exitCode int, err error) {
	localCommand := t.wrapWithSshPass(t.prepareSCPCommand(srcPath, dstDir))
	return runLocal(localCommand, "", 0)
}
