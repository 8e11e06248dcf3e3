package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"hotkeyhub/internal/ipc"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    cliOptions
		wantErr bool
	}{
		{name: "defaults", args: nil, want: cliOptions{}},
		{name: "config and level", args: []string{"-config", "c.yaml", "-log-level", "debug"}, want: cliOptions{configPath: "c.yaml", logLevel: "debug"}},
		{name: "send with args", args: []string{"-send", "history", "5", "notes"}, want: cliOptions{send: "history", sendArgs: []string{"5", "notes"}}},
		{name: "stray args", args: []string{"oops"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			got, err := parseFlags(tt.args, &stderr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseFlags(%v) expected error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags(%v) error = %v", tt.args, err)
			}
			if got.configPath != tt.want.configPath || got.logLevel != tt.want.logLevel ||
				got.send != tt.want.send || !slices.Equal(got.sendArgs, tt.want.sendArgs) {
				t.Fatalf("parseFlags(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "debug", want: "DEBUG"},
		{in: " WARN ", want: "WARN"},
		{in: "error", want: "ERROR"},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseLevel(%q) expected error", tt.in)
				}
				return
			}
			if err != nil || got.String() != tt.want {
				t.Fatalf("parseLevel(%q) = %v, %v; want %s", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestRunHelpAndBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-h"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(-h) = %d, want 0", code)
	}
	if !strings.Contains(stderr.String(), "usage: hotkeyd") {
		t.Fatalf("usage missing from stderr: %q", stderr.String())
	}
	if code := run([]string{"-bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("run(-bogus) = %d, want 2", code)
	}
}

func isolateControl(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	name := fmt.Sprintf("hotkeyhub-clitest-%d-%d", os.Getpid(), time.Now().UnixNano())
	t.Setenv("HOTKEYHUB_CONTROL", name)
	return ipc.DefaultAddress("")
}

func TestRunSendWithoutDaemon(t *testing.T) {
	isolateControl(t)
	configPath := filepath.Join(t.TempDir(), "missing.yaml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", configPath, "-send", "ping"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("run(-send ping) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "not running") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunSendMirrorsResponse(t *testing.T) {
	address := isolateControl(t)
	server := ipc.NewServer(address, ipc.ExecutorFunc(func(req ipc.Request) ipc.Response {
		return ipc.Response{ExitCode: 3, Stdout: req.Command + " " + strings.Join(req.Args, ","), Stderr: "warn"}
	}))
	if err := server.Start(); err != nil {
		t.Fatalf("server.Start() error = %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", filepath.Join(t.TempDir(), "c.yaml"), "-send", "history", "2"}, &stdout, &stderr)
	if code != 3 || stdout.String() != "history 2" || stderr.String() != "warn" {
		t.Fatalf("run(-send) = %d stdout=%q stderr=%q", code, stdout.String(), stderr.String())
	}
}
