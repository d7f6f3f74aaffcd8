package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"os/exec"

	"ptustress/internal/util"
)

// LocalTarget runs commands on the host ptustress runs on.
type LocalTarget struct {
	host       string
	sudo       string
	canElevate elevation
}

// NewLocalTarget creates a LocalTarget named after the host.
func NewLocalTarget() *LocalTarget {
	hostName, err := os.Hostname()
	if err != nil {
		hostName = "localhost"
	}
	return &LocalTarget{host: hostName}
}

// SetSudo sets the password fed to 'sudo -S'. The password is verified again on the
// next CanElevatePrivileges call.
func (t *LocalTarget) SetSudo(sudo string) {
	t.sudo = sudo
	t.canElevate = elevationUnknown
}

// RunCommand runs cmd on the local host. The sudo password, when set, is written to
// the stdin of 'sudo -S' commands.
func (t *LocalTarget) RunCommand(cmd *exec.Cmd, timeout int, _ bool) (stdout string, stderr string, exitCode int, err error) {
	input := ""
	if t.sudo != "" && sudoReadsStdin(cmd.Args) {
		input = t.sudo + "\n"
	}
	return runLocal(cmd, input, timeout)
}

// PullFile copies srcPath into dstDir.
func (t *LocalTarget) PullFile(srcPath string, dstDir string) error {
	return util.CopyFile(srcPath, dstDir)
}

// CanConnect is always true for the local host.
func (t *LocalTarget) CanConnect() bool {
	return true
}

// CanElevatePrivileges reports whether the user is root, the sudo password works, or
// password-less sudo is configured.
func (t *LocalTarget) CanElevatePrivileges() bool {
	if t.canElevate != elevationUnknown {
		return t.canElevate == elevationAllowed
	}
	if t.IsSuperUser() {
		return t.canElevate.set(true)
	}
	if t.sudo != "" {
		if _, _, _, err := t.RunCommand(exec.Command("sudo", "-kS", "true"), 10, true); err == nil {
			return t.canElevate.set(true)
		}
	}
	_, _, _, err := t.RunCommand(exec.Command("sudo", "-kn", "true"), 10, true)
	return t.canElevate.set(err == nil)
}

// IsSuperUser reports whether ptustress runs as root.
func (t *LocalTarget) IsSuperUser() bool {
	return os.Geteuid() == 0
}

// GetName returns the host name of the local system.
func (t *LocalTarget) GetName() (host string) {
	return t.host
}
