//go:build unix

package procutil

import (
	"os/exec"
	"syscall"
)

// Detach starts cmd in its own process group so terminal signals sent to
// hotkeyd do not reach it. Existing SysProcAttr fields are preserved.
func Detach(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
