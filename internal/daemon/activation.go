package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"hotkeyhub/internal/config"
	"hotkeyhub/internal/history"
	"hotkeyhub/internal/hotkeys"
	"hotkeyhub/internal/procutil"
	"hotkeyhub/internal/wsserver"
)

const historyWriteTimeout = 2 * time.Second

// ActivationRecord is one accepted activation as the daemon saw it.
type ActivationRecord struct {
	EventID  string
	Binding  string
	Hotkey   string
	HotkeyID uint16
	Time     time.Time
}

// onActivation is the manager-wide listener. It runs on the sink's dispatch
// thread, so persistence is handed to recordLoop.
func (d *Daemon) onActivation(act hotkeys.Activation) {
	name, _ := act.Registration.Payload().(string)
	rec := ActivationRecord{
		EventID:  uuid.NewString(),
		Binding:  name,
		Hotkey:   act.Registration.Hotkey().String(),
		HotkeyID: act.Registration.ID(),
		Time:     act.Time,
	}
	d.activations.Add(rec)
	slog.Debug("[DEBUG-DAEMON] activation", "binding", rec.Binding, "hotkey", rec.Hotkey, "eventId", rec.EventID)

	select {
	case d.records <- rec:
	default:
		slog.Warn("[WARN-DAEMON] activation record queue full, dropping", "binding", rec.Binding)
	}
}

// recordLoop persists queued activations until ctx ends, then drains what
// is already queued.
func (d *Daemon) recordLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-d.records:
					d.persist(rec)
				default:
					return nil
				}
			}
		case rec := <-d.records:
			d.persist(rec)
		}
	}
}

func (d *Daemon) persist(rec ActivationRecord) {
	if d.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		err := d.store.Record(ctx, history.Entry{
			EventID:  rec.EventID,
			Binding:  rec.Binding,
			Hotkey:   rec.Hotkey,
			HotkeyID: int(rec.HotkeyID),
			Time:     rec.Time,
		})
		cancel()
		if err != nil {
			slog.Warn("[WARN-DAEMON] failed to record activation", "binding", rec.Binding, "error", err)
		}
	}
	if d.hub != nil {
		d.hub.Broadcast(wsserver.Event{
			ID:       rec.EventID,
			Binding:  rec.Binding,
			Hotkey:   rec.Hotkey,
			HotkeyID: int(rec.HotkeyID),
			Time:     rec.Time,
		})
	}
}

func (d *Daemon) runBinding(b config.Binding) {
	if err := d.opts.RunCommand(b); err != nil {
		slog.Warn("[WARN-DAEMON] binding command failed to start", "binding", b.Name, "command", b.Command, "error", err)
	}
}

// startCommand launches the binding's command detached from the daemon and
// reaps it in the background.
func startCommand(b config.Binding) error {
	spec, err := b.ResolveCommand()
	if err != nil {
		return err
	}
	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.WorkDir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	procutil.Detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	slog.Debug("[DEBUG-DAEMON] binding command started", "binding", b.Name, "pid", pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("[DEBUG-DAEMON] binding command exited with error", "binding", b.Name, "pid", pid, "error", err)
		}
	}()
	return nil
}
