//go:build windows

package procutil

import (
	"os/exec"
	"syscall"
)

// Detach suppresses the console window flash and starts cmd in a new
// process group. Existing SysProcAttr fields are preserved.
func Detach(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}
