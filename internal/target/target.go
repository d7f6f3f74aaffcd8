/*
Package target runs commands on, and retrieves files from, the system-under-test. The
system is either the local host or a remote host reached over ssh.
*/
package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"os/exec"
)

// Target represents a machine where commands can be run.
type Target interface {
	// CanConnect checks if a connection can be established with the target.
	CanConnect() bool

	// CanElevatePrivileges checks if the current user can elevate privileges.
	CanElevatePrivileges() bool

	// IsSuperUser checks if the current user is a superuser.
	IsSuperUser() bool

	// GetName returns the name of the target system.
	GetName() (name string)

	// RunCommand runs cmd on the target. timeout is in seconds, zero for none.
	// reuseSSHConnection only applies to remote targets. A command that exceeds its
	// timeout fails with ErrCommandTimeout.
	RunCommand(cmd *exec.Cmd, timeout int, reuseSSHConnection bool) (stdout string, stderr string, exitCode int, err error)

	// PullFile transfers a file from the target to a directory on the local system.
	PullFile(srcPath string, dstDir string) error
}

// ErrCommandTimeout is returned by RunCommand when the command is killed at its timeout.
var ErrCommandTimeout = errors.New("command timed out")

// elevation caches whether privileges can be elevated on a target.
type elevation int

const (
	elevationUnknown elevation = iota
	elevationAllowed
	elevationDenied
)

func (e *elevation) set(allowed bool) bool {
	if allowed {
		*e = elevationAllowed
	} else {
		*e = elevationDenied
	}
	return allowed
}
