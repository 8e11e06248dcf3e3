package ipc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"hotkeyhub/internal/userutil"
)

const (
	addressPrefix = "hotkeyhub"
	// addressEnvVar lets tests and side-by-side installs point the client
	// at another daemon. Values must match addressNamePattern.
	addressEnvVar = "HOTKEYHUB_CONTROL"
)

var addressNamePattern = regexp.MustCompile(`(?i)^hotkeyhub-[a-z0-9._-]{1,128}$`)

// Request is one control command sent to a running hotkeyd.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response mirrors a CLI result: exit code plus captured output.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Executor handles a control request and returns a response.
type Executor interface {
	Execute(req Request) Response
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(Request) Response

// Execute calls f.
func (f ExecutorFunc) Execute(req Request) Response { return f(req) }

// ErrorResponse builds a failed Response with msg on stderr.
func ErrorResponse(msg string) Response {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return Response{ExitCode: 1, Stderr: msg}
}

// DefaultAddress returns the control address for name. An empty name uses
// the HOTKEYHUB_CONTROL override when it is valid, else the per-user
// default.
func DefaultAddress(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		if v, ok := trustedNameFromEnv(); ok {
			name = v
		} else {
			name = userutil.InstanceName(addressPrefix)
		}
	}
	return addressFor(name)
}

func trustedNameFromEnv() (string, bool) {
	value := strings.TrimSpace(lookupEnv(addressEnvVar))
	if value == "" {
		return "", false
	}
	if !addressNamePattern.MatchString(value) {
		slog.Warn("[ipc] "+addressEnvVar+" rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return Request{}, errors.New("command is required")
	}
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
