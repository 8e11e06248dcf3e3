//go:build unix

package procutil

import (
	"os/exec"
	"syscall"
	"testing"
)

func TestDetach(t *testing.T) {
	cmd := exec.Command("echo", "test")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: false}

	Detach(cmd)

	if !cmd.SysProcAttr.Setpgid {
		t.Fatal("Setpgid is false after Detach()")
	}
}

func TestDetachNilCmd(t *testing.T) {
	// Must not panic on nil cmd.
	Detach(nil)
}
