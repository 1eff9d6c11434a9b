//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProc detaches the daemon from the console that started it.
func configureDaemonProc(cmd *exec.Cmd) {
	const detachedProcess = 0x00000008
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: detachedProcess}
}
