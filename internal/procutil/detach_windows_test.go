//go:build windows

package procutil

import (
	"os/exec"
	"syscall"
	"testing"
)

func TestDetach(t *testing.T) {
	cmd := exec.Command("cmd.exe", "/c", "echo", "test")

	Detach(cmd)

	if cmd.SysProcAttr == nil {
		t.Fatal("SysProcAttr is nil after Detach()")
	}
	if !cmd.SysProcAttr.HideWindow {
		t.Error("HideWindow is false, want true")
	}
	if cmd.SysProcAttr.CreationFlags&syscall.CREATE_NEW_PROCESS_GROUP == 0 {
		t.Error("CREATE_NEW_PROCESS_GROUP not set")
	}
}

func TestDetachPreservesExistingFlags(t *testing.T) {
	const createNoWindow = 0x08000000
	cmd := exec.Command("cmd.exe", "/c", "echo", "test")
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}

	Detach(cmd)
	Detach(cmd)

	if cmd.SysProcAttr.CreationFlags&createNoWindow == 0 {
		t.Errorf("CreationFlags = 0x%X, lost existing flag", cmd.SysProcAttr.CreationFlags)
	}
}

func TestDetachNilCmd(t *testing.T) {
	// Must not panic on nil cmd.
	Detach(nil)
}
