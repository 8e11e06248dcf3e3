package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"hotkeyhub/internal/history"
	"hotkeyhub/internal/ipc"
)

const historyReadTimeout = 5 * time.Second

// Execute implements ipc.Executor.
//
//	ping               pong
//	list               live registrations and failed bindings
//	reload             re-read the config file
//	history [n] [name] newest activations, optionally for one binding
//	warnings           recent warning log entries
//	stop               ask the process to exit
func (d *Daemon) Execute(req ipc.Request) ipc.Response {
	switch req.Command {
	case "ping":
		return ipc.Response{Stdout: "pong\n"}
	case "list":
		return d.executeList()
	case "reload":
		result, err := d.Reload()
		if err != nil {
			return ipc.ErrorResponse(err.Error())
		}
		return ipc.Response{Stdout: result.String() + "\n"}
	case "history":
		return d.executeHistory(req.Args)
	case "warnings":
		return d.executeWarnings()
	case "stop":
		slog.Info("[DEBUG-DAEMON] stop requested over control channel")
		d.requestStop()
		return ipc.Response{Stdout: "stopping\n"}
	default:
		return ipc.ErrorResponse(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func (d *Daemon) executeList() ipc.Response {
	d.mu.Lock()
	names := make([]string, 0, len(d.bound))
	for name := range d.bound {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return int(d.bound[a].reg.ID()) - int(d.bound[b].reg.ID())
	})
	var out strings.Builder
	for _, name := range names {
		reg := d.bound[name].reg
		repeat := ""
		if reg.AllowRepeat() {
			repeat = "\trepeat"
		}
		fmt.Fprintf(&out, "%d\t%s\t%s%s\n", reg.ID(), name, reg.Hotkey(), repeat)
	}
	failed := make([]string, 0, len(d.failed))
	for name := range d.failed {
		failed = append(failed, name)
	}
	slices.Sort(failed)
	var errOut strings.Builder
	for _, name := range failed {
		fmt.Fprintf(&errOut, "failed\t%s\t%v\n", name, d.failed[name])
	}
	d.mu.Unlock()

	resp := ipc.Response{Stdout: out.String(), Stderr: errOut.String()}
	if len(failed) > 0 {
		resp.ExitCode = 2
	}
	return resp
}

func (d *Daemon) executeHistory(args []string) ipc.Response {
	limit := history.DefaultRecentLimit
	binding := ""
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return ipc.ErrorResponse(fmt.Sprintf("history: invalid count %q", args[0]))
		}
		limit = min(n, history.MaxRecentLimit)
	}
	if len(args) > 1 {
		binding = args[1]
	}
	if len(args) > 2 {
		return ipc.ErrorResponse("usage: history [count] [binding]")
	}

	records, err := d.recentActivations(binding, limit)
	if err != nil {
		return ipc.ErrorResponse(err.Error())
	}
	var out strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&out, "%s\t%s\t%s\n", rec.Time.Format(time.RFC3339Nano), rec.Binding, rec.Hotkey)
	}
	return ipc.Response{Stdout: out.String()}
}

// recentActivations prefers the persistent store and falls back to the
// in-memory log.
func (d *Daemon) recentActivations(binding string, limit int) ([]ActivationRecord, error) {
	if d.store == nil {
		return d.activations.Newest(limit, func(rec ActivationRecord) bool {
			return binding == "" || rec.Binding == binding
		}), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyReadTimeout)
	defer cancel()
	entries, err := d.store.Recent(ctx, binding, limit)
	if err != nil {
		return nil, err
	}
	records := make([]ActivationRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, ActivationRecord{
			EventID:  e.EventID,
			Binding:  e.Binding,
			Hotkey:   e.Hotkey,
			HotkeyID: uint16(e.HotkeyID),
			Time:     e.Time,
		})
	}
	return records, nil
}

// RecentActivations returns up to limit activations, newest first.
func (d *Daemon) RecentActivations(binding string, limit int) ([]ActivationRecord, error) {
	if limit <= 0 {
		limit = history.DefaultRecentLimit
	}
	return d.recentActivations(binding, limit)
}

func (d *Daemon) executeWarnings() ipc.Response {
	if d.opts.Warnings == nil {
		return ipc.Response{}
	}
	var out strings.Builder
	for _, e := range d.opts.Warnings.Snapshot() {
		fmt.Fprintf(&out, "%s\t%s\t%s\n", e.Time.Format(time.RFC3339), e.Level, e.Message)
	}
	return ipc.Response{Stdout: out.String()}
}
