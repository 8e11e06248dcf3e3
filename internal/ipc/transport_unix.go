//go:build unix

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// addressFor places the socket in XDG_RUNTIME_DIR, falling back to the
// temp dir.
func addressFor(name string) string {
	dir := strings.TrimSpace(lookupEnv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name+".sock")
}

func dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", address, timeout)
}

// listen binds a unix socket readable only by the current user. A stale
// socket file left by a crashed daemon is removed; a live one is an error.
func listen(address string) (net.Listener, error) {
	if _, err := os.Stat(address); err == nil {
		if conn, dialErr := net.DialTimeout("unix", address, 500*time.Millisecond); dialErr == nil {
			conn.Close()
			return nil, errors.New("address already in use by a running daemon")
		}
		slog.Debug("[DEBUG-IPC] removing stale control socket", "address", address)
		if err := os.Remove(address); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(address), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	listener, err := net.Listen("unix", address)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(address, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}
