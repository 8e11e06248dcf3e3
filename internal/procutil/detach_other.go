//go:build !windows && !unix

package procutil

import "os/exec"

// Detach is a no-op where process groups are not available.
func Detach(_ *exec.Cmd) {}
