// Package shell parses the one-line "run" form of a binding command into
// a working directory, extra environment and an argv. No shell is
// involved: operators other than a leading "cd <dir> &&" are rejected.
package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrEmptyCommand      = errors.New("command is empty")
	ErrUnterminatedQuote = errors.New("unterminated quote")
)

// ParsedCommand holds the components of a command line.
type ParsedCommand struct {
	WorkDir string            // extracted from "cd 'path' && ..."
	Env     map[string]string // extracted from "KEY=VALUE" prefixes
	Args    []string          // program and arguments
}

// unsupportedOperators are shell control tokens that would silently change
// meaning without a shell.
var unsupportedOperators = map[string]struct{}{
	"&&": {},
	"||": {},
	"|":  {},
	";":  {},
	"&":  {},
	">":  {},
	">>": {},
	"<":  {},
}

// word is one token. bare reports that the token started outside quotes,
// which is required for a KEY=VALUE prefix.
type word struct {
	text string
	bare bool
}

// ParseCommandLine splits line.
//
//	cd 'C:\work' && EDITOR=vim FOO=1 "C:\Program Files\app.exe" --flag "a b"
//
// gives WorkDir C:\work, Env {EDITOR: vim, FOO: 1} and Args
// ["C:\Program Files\app.exe", "--flag", "a b"]. Single quotes are literal;
// inside double quotes \" and \\ are escapes; elsewhere backslashes are
// literal so Windows paths need no quoting.
func ParseCommandLine(line string) (ParsedCommand, error) {
	result := ParsedCommand{Env: map[string]string{}}

	remaining := strings.TrimSpace(line)
	if remaining == "" {
		return result, ErrEmptyCommand
	}

	if strings.HasPrefix(remaining, "cd ") {
		path, rest, ok := extractCDPath(remaining[3:])
		if !ok {
			return result, fmt.Errorf("cd must be followed by a directory and &&")
		}
		result.WorkDir = path
		remaining = rest
	}

	words, err := splitWords(remaining)
	if err != nil {
		return result, err
	}

	words = extractEnvVars(words, result.Env)
	if len(words) == 0 {
		return result, ErrEmptyCommand
	}
	for _, w := range words {
		if _, isOp := unsupportedOperators[w.text]; isOp && w.bare {
			return result, fmt.Errorf("shell operator %q is not supported", w.text)
		}
		result.Args = append(result.Args, w.text)
	}

	slog.Debug("[DEBUG-SHELL] parsed command line",
		"workDir", result.WorkDir,
		"env", len(result.Env),
		"args", result.Args,
	)
	return result, nil
}

// extractCDPath extracts path and tail from the text after "cd ".
// Handles: 'path' && rest, "path" && rest, path && rest.
func extractCDPath(afterCD string) (string, string, bool) {
	afterCD = strings.TrimSpace(afterCD)
	if afterCD == "" {
		return "", "", false
	}

	var path string
	var afterPath string

	switch afterCD[0] {
	case '\'', '"':
		quote := afterCD[0]
		end := strings.IndexByte(afterCD[1:], quote)
		if end < 0 {
			return "", "", false
		}
		path = afterCD[1 : end+1]
		afterPath = strings.TrimSpace(afterCD[end+2:])
	default:
		sep := strings.Index(afterCD, " &&")
		if sep < 0 {
			return "", "", false
		}
		path = strings.TrimSpace(afterCD[:sep])
		afterPath = strings.TrimSpace(afterCD[sep:])
	}

	if path == "" || !strings.HasPrefix(afterPath, "&&") {
		return "", "", false
	}
	return path, strings.TrimSpace(strings.TrimPrefix(afterPath, "&&")), true
}

// extractEnvVars moves leading KEY=VALUE words into envMap. A leading "env"
// word is dropped when an assignment follows it.
func extractEnvVars(words []word, envMap map[string]string) []word {
	if len(words) > 1 && words[0].bare && words[0].text == "env" && isAssignment(words[1]) {
		words = words[1:]
	}
	for len(words) > 0 && isAssignment(words[0]) {
		key, value, _ := strings.Cut(words[0].text, "=")
		envMap[key] = value
		words = words[1:]
	}
	return words
}

func isAssignment(w word) bool {
	if !w.bare {
		return false
	}
	key, _, ok := strings.Cut(w.text, "=")
	return ok && isEnvVarName(key)
}

// isEnvVarName checks [A-Za-z_][A-Za-z0-9_]*.
func isEnvVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 {
			if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_') {
				return false
			}
		} else if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

func splitWords(s string) ([]word, error) {
	var (
		words   []word
		current strings.Builder
		inWord  bool
		bare    bool
	)
	flush := func() {
		if inWord {
			words = append(words, word{text: current.String(), bare: bare})
			current.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			flush()
		case c == '\'':
			if !inWord {
				inWord, bare = true, false
			}
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, ErrUnterminatedQuote
			}
			current.WriteString(s[i+1 : i+1+end])
			i += end + 1
		case c == '"':
			if !inWord {
				inWord, bare = true, false
			}
			closed := false
			for i++; i < len(s); i++ {
				if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
					i++
					current.WriteByte(s[i])
					continue
				}
				if s[i] == '"' {
					closed = true
					break
				}
				current.WriteByte(s[i])
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
		default:
			if !inWord {
				inWord, bare = true, true
			}
			current.WriteByte(c)
		}
	}
	flush()
	return words, nil
}
