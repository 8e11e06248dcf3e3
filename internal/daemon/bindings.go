package daemon

import (
	"fmt"
	"log/slog"
	"slices"

	"hotkeyhub/internal/config"
	"hotkeyhub/internal/hotkeys"
)

// ReloadResult lists binding names by what a reload did with them.
type ReloadResult struct {
	Kept    []string
	Added   []string
	Removed []string
	Failed  []string
}

func (r ReloadResult) String() string {
	return fmt.Sprintf("kept=%d added=%d removed=%d failed=%d",
		len(r.Kept), len(r.Added), len(r.Removed), len(r.Failed))
}

// Reload re-reads the config file and applies the binding diff. Unchanged
// bindings keep their registration and debounce state. On a load error the
// running bindings are left untouched.
func (d *Daemon) Reload() (ReloadResult, error) {
	cfg, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("reload: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.shutdown {
		return ReloadResult{}, errNotStarted
	}

	if cfg.DebounceOverrideMs != d.cfg.DebounceOverrideMs {
		slog.Warn("[WARN-DAEMON] debounce_override_ms changed; restart to apply",
			"old", d.cfg.DebounceOverrideMs, "new", cfg.DebounceOverrideMs)
	}
	if cfg.EventFeed != d.cfg.EventFeed || cfg.HistoryDB != d.cfg.HistoryDB || cfg.ControlName != d.cfg.ControlName {
		slog.Warn("[WARN-DAEMON] event_feed, history_db or control_name changed; restart to apply")
	}

	result := d.applyBindingsLocked(cfg.EnabledBindings())
	d.cfg = config.Clone(cfg)
	slog.Info("[DEBUG-DAEMON] config reloaded", "result", result.String())
	return result, nil
}

// applyBindingsLocked converges the live registrations on desired. Every
// removal happens before any addition so a binding moved to another name
// can take over its old combination. Caller holds d.mu.
func (d *Daemon) applyBindingsLocked(desired []config.Binding) ReloadResult {
	var result ReloadResult
	want := make(map[string]config.Binding, len(desired))
	for _, b := range desired {
		want[b.Name] = b
	}

	for name, cur := range d.bound {
		if next, ok := want[name]; ok && next.Equal(cur.binding) {
			result.Kept = append(result.Kept, name)
			continue
		}
		if _, err := d.manager.Remove(cur.reg); err != nil {
			slog.Warn("[WARN-DAEMON] remove binding failed", "binding", name, "error", err)
		}
		delete(d.bound, name)
		if _, stillWanted := want[name]; !stillWanted {
			result.Removed = append(result.Removed, name)
		}
	}

	d.failed = map[string]error{}
	for _, b := range desired {
		if _, ok := d.bound[b.Name]; ok {
			continue
		}
		reg, err := d.register(b)
		if err != nil {
			slog.Warn("[WARN-DAEMON] hotkey binding not registered",
				"binding", b.Name, "hotkey", b.Hotkey, "error", err)
			d.failed[b.Name] = err
			result.Failed = append(result.Failed, b.Name)
			continue
		}
		d.bound[b.Name] = &boundBinding{binding: b, reg: reg}
		result.Added = append(result.Added, b.Name)
	}

	slices.Sort(result.Kept)
	slices.Sort(result.Removed)
	return result
}

func (d *Daemon) register(b config.Binding) (*hotkeys.Registration, error) {
	hk, err := b.ParsedHotkey()
	if err != nil {
		return nil, err
	}
	opts := []hotkeys.AddOption{hotkeys.WithPayload(b.Name)}
	if b.HasCommand() {
		binding := b
		opts = append(opts, hotkeys.WithCallback(func(hotkeys.Activation) {
			d.runBinding(binding)
		}))
	}
	return d.manager.TryAdd(hk, b.AllowRepeat, opts...)
}
