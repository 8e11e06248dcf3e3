package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hotkeyhub/internal/config"
	"hotkeyhub/internal/daemon"
	"hotkeyhub/internal/ipc"
	"hotkeyhub/internal/sessionlog"
	"hotkeyhub/internal/singleinstance"
)

const warningRingSize = 200

func main() {
	code := 0
	runOnMainThread(func() {
		code = run(os.Args[1:], os.Stdout, os.Stderr)
	})
	os.Exit(code)
}

type cliOptions struct {
	configPath string
	logLevel   string
	send       string
	sendArgs   []string
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("hotkeyd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "config file (default: per-user config.yaml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default: from config)")
	fs.StringVar(&opts.send, "send", "", "send a control command (ping, list, reload, history, warnings, stop) to the running daemon")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: hotkeyd [-config path] [-log-level level] [-send command [args...]]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.send = strings.TrimSpace(opts.send)
	if fs.NArg() > 0 {
		if opts.send == "" {
			return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		}
		opts.sendArgs = fs.Args()
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	if opts.send != "" {
		cfg, loadErr := config.Load(configPath)
		if loadErr != nil {
			fmt.Fprintf(stderr, "warning: %v\n", loadErr)
		}
		return sendCommand(ipc.DefaultAddress(cfg.ControlName), ipc.Request{Command: opts.send, Args: opts.sendArgs}, stdout, stderr)
	}

	var cfg config.Config
	if opts.configPath == "" {
		cfg, err = config.EnsureFile(configPath)
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		fmt.Fprintf(stderr, "hotkeyd: %v\n", err)
		return 1
	}

	levelName := opts.logLevel
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := parseLevel(levelName)
	if err != nil {
		fmt.Fprintf(stderr, "hotkeyd: %v\n", err)
		return 2
	}
	warnings := sessionlog.NewRing(warningRingSize)
	base := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(sessionlog.NewTeeHandler(base, slog.LevelWarn, warnings.Capture)))
	for _, msg := range config.ConsumeDefaultPathWarnings() {
		slog.Warn("[WARN-CONFIG] " + msg)
	}

	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Info("[DEBUG-SINGLE] another instance is already running")
		sendCommand(ipc.DefaultAddress(cfg.ControlName), ipc.Request{Command: "ping"}, stdout, stderr)
		return 1
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] instance lock failed, proceeding without single-instance guard", "error", err)
	}
	if lock != nil {
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("[DEBUG-SINGLE] instance lock release failed", "error", releaseErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(daemon.Options{ConfigPath: configPath, Warnings: warnings})
	if err != nil {
		slog.Error("[DEBUG-DAEMON] init failed", "error", err)
		return 1
	}
	if err := d.Start(ctx); err != nil {
		slog.Error("[DEBUG-DAEMON] start failed", "error", err)
		return 1
	}

	select {
	case <-ctx.Done():
		slog.Info("[DEBUG-DAEMON] signal received, shutting down")
	case <-d.Done():
	}
	if err := d.Shutdown(); err != nil {
		slog.Error("[DEBUG-DAEMON] shutdown finished with errors", "error", err)
		return 1
	}
	return 0
}

// sendCommand forwards req to a running daemon and mirrors its response.
func sendCommand(address string, req ipc.Request, stdout, stderr io.Writer) int {
	resp, err := ipc.Send(address, req)
	if err != nil {
		if ipc.IsConnectionError(err) {
			fmt.Fprintln(stderr, "hotkeyd is not running")
		} else {
			fmt.Fprintf(stderr, "hotkeyd: %v\n", err)
		}
		return 1
	}
	fmt.Fprint(stdout, resp.Stdout)
	fmt.Fprint(stderr, resp.Stderr)
	return resp.ExitCode
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
