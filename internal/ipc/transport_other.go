//go:build !windows && !unix

package ipc

import (
	"errors"
	"net"
	"time"
)

var errNoTransport = errors.New("control channel is not supported on this platform")

func addressFor(name string) string { return name }

func dial(string, time.Duration) (net.Conn, error) { return nil, errNoTransport }

func listen(string) (net.Listener, error) { return nil, errNoTransport }
