package ipc

import (
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Request
		wantErr bool
	}{
		{name: "command only", raw: `{"command":"list"}`, want: Request{Command: "list", Args: []string{}}},
		{name: "trimmed command with args", raw: `{"command":"  history ","args":["10"]}`, want: Request{Command: "history", Args: []string{"10"}}},
		{name: "missing command", raw: `{"args":["x"]}`, wantErr: true},
		{name: "blank command", raw: `{"command":"   "}`, wantErr: true},
		{name: "malformed json", raw: `{"command":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRequest([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeRequest(%q) expected error, got %+v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeRequest(%q) error = %v", tt.raw, err)
			}
			if got.Command != tt.want.Command || strings.Join(got.Args, ",") != strings.Join(tt.want.Args, ",") || got.Args == nil {
				t.Fatalf("decodeRequest(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestErrorResponseAddsNewline(t *testing.T) {
	resp := ErrorResponse("boom")
	if resp.ExitCode != 1 || resp.Stderr != "boom\n" {
		t.Fatalf("ErrorResponse = %+v", resp)
	}
	if got := ErrorResponse("done\n").Stderr; got != "done\n" {
		t.Fatalf("ErrorResponse kept newline = %q", got)
	}
}

func TestDefaultAddressEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		contains string
	}{
		{name: "valid override", env: "hotkeyhub-tests.1", contains: "hotkeyhub-tests.1"},
		{name: "rejected override", env: "../../evil", contains: "hotkeyhub-"},
		{name: "unset", env: "", contains: "hotkeyhub-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := lookupEnv
			t.Cleanup(func() { lookupEnv = orig })
			lookupEnv = func(key string) string {
				if key == addressEnvVar {
					return tt.env
				}
				return orig(key)
			}
			got := DefaultAddress("")
			if !strings.Contains(got, tt.contains) {
				t.Fatalf("DefaultAddress() = %q, want it to contain %q", got, tt.contains)
			}
			if strings.Contains(got, "evil") {
				t.Fatalf("DefaultAddress() accepted untrusted override: %q", got)
			}
		})
	}
}

func TestDefaultAddressExplicitName(t *testing.T) {
	if got := DefaultAddress("hotkeyhub-explicit"); !strings.Contains(got, "hotkeyhub-explicit") {
		t.Fatalf("DefaultAddress(explicit) = %q", got)
	}
}
