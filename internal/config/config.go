package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"hotkeyhub/internal/hotkeys"
	"hotkeyhub/internal/shell"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
	// maxValidPort is the highest TCP/UDP port number (2^16 - 1).
	// Port 0 is valid and means "OS auto-assign".
	maxValidPort = 65535
	// maxDebounceOverride caps debounce_override_ms. Anything longer makes
	// a hotkey feel dead.
	maxDebounceOverride = 5 * time.Second
	maxBindingNameLen   = 64
)

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir
var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Config is the hotkeyd runtime configuration.
type Config struct {
	LogLevel string    `yaml:"log_level" json:"log_level"`
	Bindings []Binding `yaml:"bindings" json:"bindings"`
	// ControlName overrides the per-user control channel name. Empty uses
	// the default derived from the user name.
	ControlName string          `yaml:"control_name,omitempty" json:"control_name,omitempty"`
	EventFeed   EventFeedConfig `yaml:"event_feed" json:"event_feed"`
	// HistoryDB is the SQLite file activations are recorded to.
	// Empty disables persistent history.
	HistoryDB string `yaml:"history_db,omitempty" json:"history_db,omitempty"`
	// DebounceOverrideMs replaces the debounce interval derived from the
	// keyboard repeat settings. 0 keeps the derived value.
	DebounceOverrideMs int `yaml:"debounce_override_ms,omitempty" json:"debounce_override_ms,omitempty"`
}

// EventFeedConfig controls the loopback WebSocket activation feed.
type EventFeedConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Port is the loopback port. 0 lets the OS assign one.
	Port int `yaml:"port" json:"port"`
}

// Binding maps a hotkey to an optional command.
//
// SECURITY: Command is executed verbatim by the daemon. It is trusted
// configuration loaded from the owner-only config file and must not be
// populated from other sources.
type Binding struct {
	Name        string   `yaml:"name" json:"name"`
	Hotkey      string   `yaml:"hotkey" json:"hotkey"`
	AllowRepeat bool     `yaml:"allow_repeat,omitempty" json:"allow_repeat,omitempty"`
	Command     []string `yaml:"command,omitempty" json:"command,omitempty"`
	// Run is a one-line alternative to Command, e.g.
	// "cd /srv/notes && EDITOR=vim code today.md". See shell.ParseCommandLine.
	Run     string            `yaml:"run,omitempty" json:"run,omitempty"`
	WorkDir string            `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the binding should be registered.
func (b Binding) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// ParsedHotkey parses the Hotkey field.
func (b Binding) ParsedHotkey() (hotkeys.Hotkey, error) {
	return hotkeys.ParseHotkey(b.Hotkey)
}

// HasCommand reports whether activating the binding starts a process.
func (b Binding) HasCommand() bool {
	return len(b.Command) > 0 || b.Run != ""
}

// CommandSpec is a resolved binding command.
type CommandSpec struct {
	Args    []string
	WorkDir string
	Env     []string // KEY=VALUE, sorted by key
}

// ResolveCommand merges Command or Run with WorkDir and Env. Values from
// the binding's own work_dir and env win over those embedded in Run.
func (b Binding) ResolveCommand() (CommandSpec, error) {
	spec := CommandSpec{Args: slices.Clone(b.Command), WorkDir: b.WorkDir}
	env := maps.Clone(b.Env)
	if b.Run != "" {
		parsed, err := shell.ParseCommandLine(b.Run)
		if err != nil {
			return CommandSpec{}, fmt.Errorf("binding %q: run: %w", b.Name, err)
		}
		spec.Args = parsed.Args
		if spec.WorkDir == "" {
			spec.WorkDir = parsed.WorkDir
		}
		for key, value := range parsed.Env {
			if _, set := env[key]; !set {
				if env == nil {
					env = map[string]string{}
				}
				env[key] = value
			}
		}
	}
	if len(spec.Args) == 0 {
		return CommandSpec{}, fmt.Errorf("binding %q has no command", b.Name)
	}
	for _, key := range slices.Sorted(maps.Keys(env)) {
		spec.Env = append(spec.Env, key+"="+env[key])
	}
	return spec, nil
}

// Equal reports whether two bindings would register and behave identically.
func (b Binding) Equal(other Binding) bool {
	if b.Name != other.Name || b.AllowRepeat != other.AllowRepeat || b.WorkDir != other.WorkDir {
		return false
	}
	if b.IsEnabled() != other.IsEnabled() || !slices.Equal(b.Command, other.Command) {
		return false
	}
	if b.Run != other.Run || !maps.Equal(b.Env, other.Env) {
		return false
	}
	a, errA := b.ParsedHotkey()
	o, errO := other.ParsedHotkey()
	if errA != nil || errO != nil {
		return b.Hotkey == other.Hotkey
	}
	return a == o
}

// DebounceOverride returns DebounceOverrideMs as a duration.
func (c Config) DebounceOverride() time.Duration {
	return time.Duration(c.DebounceOverrideMs) * time.Millisecond
}

// EnabledBindings returns the bindings that should be registered, in file order.
func (c Config) EnabledBindings() []Binding {
	out := make([]Binding, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		if b.IsEnabled() {
			out = append(out, b)
		}
	}
	return out
}

// DefaultConfig returns default values.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Bindings: []Binding{},
		EventFeed: EventFeedConfig{
			Enabled: false,
			Port:    0,
		},
	}
}

// DefaultPath returns the per-user config file location:
// LOCALAPPDATA, then APPDATA, then ~/.config, then the temp dir.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			// Keep config path resolvable even in restricted environments.
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve LOCALAPPDATA/APPDATA/home directory. Using temp directory; settings persistence may be limited.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "hotkeyhub", "config.yaml")
}

// Load reads path. A missing or empty file yields DefaultConfig. On a parse
// error the defaults are returned together with the error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EnsureFile loads path and writes the result back when the file does not
// exist yet.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := src
	if src.Bindings != nil {
		dst.Bindings = make([]Binding, len(src.Bindings))
		for i, b := range src.Bindings {
			dst.Bindings[i] = cloneBinding(b)
		}
	}
	return dst
}

func cloneBinding(src Binding) Binding {
	dst := src
	dst.Env = maps.Clone(src.Env)
	if src.Command != nil {
		dst.Command = make([]string, len(src.Command))
		copy(dst.Command, src.Command)
	}
	if src.Enabled != nil {
		enabled := *src.Enabled
		dst.Enabled = &enabled
	}
	return dst
}

// Save validates cfg and writes it atomically to path, which must lie
// inside the default config directory.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	// Atomic write: temp file + rename in same directory ensures
	// same-filesystem rename and prevents partial writes on crash.
	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory when that directory is resolvable.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

// applyDefaultsAndValidate fills missing defaults and validates cfg in-place.
// MUTATES: cfg is directly modified.
// Used by both Load and Save to ensure consistent normalization.
func applyDefaultsAndValidate(cfg *Config) error {
	defaults := DefaultConfig()
	if isZeroConfig(*cfg) {
		*cfg = defaults
		return nil
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		return fmt.Errorf("log_level %q is not one of %s", cfg.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if cfg.Bindings == nil {
		cfg.Bindings = []Binding{}
	}
	cfg.ControlName = strings.TrimSpace(cfg.ControlName)
	cfg.HistoryDB = strings.TrimSpace(cfg.HistoryDB)

	validateEventFeedPort(cfg)
	validateDebounceOverride(cfg)
	return validateBindings(cfg.Bindings)
}

// validateBindings normalizes each binding in place and rejects duplicate
// names and duplicate enabled hotkeys.
func validateBindings(bindings []Binding) error {
	names := make(map[string]int, len(bindings))
	combos := make(map[hotkeys.Hotkey]string, len(bindings))
	for i := range bindings {
		b := &bindings[i]
		b.Name = strings.TrimSpace(b.Name)
		b.Hotkey = strings.TrimSpace(b.Hotkey)
		b.WorkDir = strings.TrimSpace(b.WorkDir)

		if b.Name == "" {
			return fmt.Errorf("bindings[%d]: name required", i)
		}
		if len(b.Name) > maxBindingNameLen {
			return fmt.Errorf("bindings[%d]: name %q exceeds %d bytes", i, b.Name, maxBindingNameLen)
		}
		key := strings.ToLower(b.Name)
		if prev, dup := names[key]; dup {
			return fmt.Errorf("bindings[%d]: name %q duplicates bindings[%d]", i, b.Name, prev)
		}
		names[key] = i

		hk, err := b.ParsedHotkey()
		if err != nil {
			return fmt.Errorf("binding %q: %w", b.Name, err)
		}
		if b.IsEnabled() {
			if other, dup := combos[hk]; dup {
				return fmt.Errorf("binding %q: hotkey %s is already bound by %q", b.Name, hk, other)
			}
			combos[hk] = b.Name
		}

		if err := sanitizeCommand(b); err != nil {
			return err
		}
		if err := validateRun(b); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeCommand drops empty arguments and rejects a command whose program
// is missing or contains a null byte.
func sanitizeCommand(b *Binding) error {
	if len(b.Command) == 0 {
		b.Command = nil
		return nil
	}
	args := make([]string, 0, len(b.Command))
	for idx, arg := range b.Command {
		if strings.ContainsRune(arg, '\x00') {
			return fmt.Errorf("binding %q: command[%d] contains a null byte", b.Name, idx)
		}
		if idx == 0 {
			arg = strings.TrimSpace(arg)
			if arg == "" {
				return fmt.Errorf("binding %q: command program is empty", b.Name)
			}
		}
		if arg == "" {
			continue
		}
		args = append(args, arg)
	}
	b.Command = args
	return nil
}

// validateRun rejects a binding that sets both command forms, an
// unparsable run line, or an invalid env key.
func validateRun(b *Binding) error {
	b.Run = strings.TrimSpace(b.Run)
	if b.Run != "" && len(b.Command) > 0 {
		return fmt.Errorf("binding %q: set either command or run, not both", b.Name)
	}
	for key, value := range b.Env {
		if !envKeyPattern.MatchString(key) {
			return fmt.Errorf("binding %q: env key %q is invalid", b.Name, key)
		}
		if strings.ContainsRune(value, '\x00') {
			return fmt.Errorf("binding %q: env %s contains a null byte", b.Name, key)
		}
	}
	if b.Run != "" {
		if _, err := b.ResolveCommand(); err != nil {
			return err
		}
	}
	return nil
}

func validateEventFeedPort(cfg *Config) {
	if cfg.EventFeed.Port < 0 || cfg.EventFeed.Port > maxValidPort {
		slog.Warn("[WARN-CONFIG] event_feed.port out of range, falling back to auto-assign",
			"port", cfg.EventFeed.Port)
		cfg.EventFeed.Port = 0
	}
}

func validateDebounceOverride(cfg *Config) {
	switch {
	case cfg.DebounceOverrideMs < 0:
		slog.Warn("[WARN-CONFIG] negative debounce_override_ms ignored", "value", cfg.DebounceOverrideMs)
		cfg.DebounceOverrideMs = 0
	case cfg.DebounceOverride() > maxDebounceOverride:
		slog.Warn("[WARN-CONFIG] debounce_override_ms clamped",
			"value", cfg.DebounceOverrideMs, "max", maxDebounceOverride.Milliseconds())
		cfg.DebounceOverrideMs = int(maxDebounceOverride.Milliseconds())
	}
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	// reflect.DeepEqual guards against field-addition drift that manual checks miss.
	return reflect.DeepEqual(cfg, Config{})
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
