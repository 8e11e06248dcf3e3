package shell

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantWorkDir string
		wantEnv     map[string]string
		wantArgs    []string
	}{
		{
			name:        "cd env and quoted exe",
			line:        `cd 'C:\Users\test\workspace' && EDITOR=vim FOO=1 'C:\Program Files\app.exe' --flag "a b"`,
			wantWorkDir: `C:\Users\test\workspace`,
			wantEnv:     map[string]string{"EDITOR": "vim", "FOO": "1"},
			wantArgs:    []string{`C:\Program Files\app.exe`, "--flag", "a b"},
		},
		{
			name:        "cd with double quotes",
			line:        `cd "C:\Projects\my app" && notepad.exe todo.txt`,
			wantWorkDir: `C:\Projects\my app`,
			wantEnv:     map[string]string{},
			wantArgs:    []string{"notepad.exe", "todo.txt"},
		},
		{
			name:        "cd unquoted path",
			line:        "cd /tmp && ls -la",
			wantWorkDir: "/tmp",
			wantEnv:     map[string]string{},
			wantArgs:    []string{"ls", "-la"},
		},
		{
			name:     "plain command with windows path",
			line:     `C:\tools\snip.exe /region`,
			wantEnv:  map[string]string{},
			wantArgs: []string{`C:\tools\snip.exe`, "/region"},
		},
		{
			name:     "env prefix command",
			line:     "env LANG=C xdg-open https://example.com",
			wantEnv:  map[string]string{"LANG": "C"},
			wantArgs: []string{"xdg-open", "https://example.com"},
		},
		{
			name:     "env as program",
			line:     "env",
			wantEnv:  map[string]string{},
			wantArgs: []string{"env"},
		},
		{
			name:     "quoted assignment is an argument",
			line:     `'A=1' prog`,
			wantEnv:  map[string]string{},
			wantArgs: []string{"A=1", "prog"},
		},
		{
			name:     "assignment after program stays an argument",
			line:     "prog A=1",
			wantEnv:  map[string]string{},
			wantArgs: []string{"prog", "A=1"},
		},
		{
			name:     "escapes inside double quotes",
			line:     `echo "say \"hi\" \\ there" tail`,
			wantEnv:  map[string]string{},
			wantArgs: []string{"echo", `say "hi" \ there`, "tail"},
		},
		{
			name:     "adjacent quoted parts join",
			line:     `prog --name="a b"'c'`,
			wantEnv:  map[string]string{},
			wantArgs: []string{"prog", "--name=a bc"},
		},
		{
			name:     "quoted operator is literal",
			line:     `echo '&&' "|"`,
			wantEnv:  map[string]string{},
			wantArgs: []string{"echo", "&&", "|"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandLine(tt.line)
			if err != nil {
				t.Fatalf("ParseCommandLine(%q) error = %v", tt.line, err)
			}
			if got.WorkDir != tt.wantWorkDir {
				t.Errorf("WorkDir = %q, want %q", got.WorkDir, tt.wantWorkDir)
			}
			if !reflect.DeepEqual(got.Env, tt.wantEnv) {
				t.Errorf("Env = %v, want %v", got.Env, tt.wantEnv)
			}
			if !reflect.DeepEqual(got.Args, tt.wantArgs) {
				t.Errorf("Args = %q, want %q", got.Args, tt.wantArgs)
			}
		})
	}
}

func TestParseCommandLineErrors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{name: "empty", line: "   ", wantErr: ErrEmptyCommand},
		{name: "only env", line: "FOO=1 BAR=2", wantErr: ErrEmptyCommand},
		{name: "only cd", line: "cd /tmp && ", wantErr: ErrEmptyCommand},
		{name: "unterminated single", line: "echo 'oops", wantErr: ErrUnterminatedQuote},
		{name: "unterminated double", line: `echo "oops`, wantErr: ErrUnterminatedQuote},
		{name: "cd without and", line: "cd /tmp"},
		{name: "chained command", line: "make && make install"},
		{name: "pipe", line: "ls | grep x"},
		{name: "redirect", line: "echo x > out.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommandLine(tt.line)
			if err == nil {
				t.Fatalf("ParseCommandLine(%q) expected error", tt.line)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseCommandLine(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
		})
	}
}

func TestIsEnvVarName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"FOO", true},
		{"_x1", true},
		{"1ABC", false},
		{"A-B", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isEnvVarName(tt.in); got != tt.want {
			t.Errorf("isEnvVarName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
