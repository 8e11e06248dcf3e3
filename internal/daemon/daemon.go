// Package daemon hosts the hotkey manager: it registers configured
// bindings, runs their commands, records activations, and answers control
// requests.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hotkeyhub/internal/config"
	"hotkeyhub/internal/history"
	"hotkeyhub/internal/hotkeys"
	"hotkeyhub/internal/ipc"
	"hotkeyhub/internal/sessionlog"
	"hotkeyhub/internal/workerutil"
	"hotkeyhub/internal/wsserver"
)

const (
	defaultActivationCapacity = 256
	recordQueueSize           = 256
)

var (
	errAlreadyStarted = errors.New("daemon already started")
	errNotStarted     = errors.New("daemon not started")
)

// CommandRunner starts a binding's command without waiting for it.
type CommandRunner func(b config.Binding) error

// Options configures New. Zero values take defaults.
type Options struct {
	// ConfigPath is the YAML file to load and watch. Required.
	ConfigPath string

	// Manager is passed to hotkeys.NewManager. A positive config
	// debounce_override_ms fills Manager.Debounce when it is unset.
	Manager hotkeys.ManagerOptions

	// RunCommand starts binding commands. nil means startCommand.
	RunCommand CommandRunner

	// Warnings is reported by the "warnings" control command. May be nil.
	Warnings *sessionlog.Ring

	// ControlAddress overrides the address derived from the config's
	// control_name.
	ControlAddress string

	// ActivationCapacity bounds the in-memory activation log. Default 256.
	ActivationCapacity int

	// DisableWatch turns off config file watching.
	DisableWatch bool
}

func (opts Options) applyDefaults() Options {
	if opts.RunCommand == nil {
		opts.RunCommand = startCommand
	}
	if opts.ActivationCapacity <= 0 {
		opts.ActivationCapacity = defaultActivationCapacity
	}
	return opts
}

// boundBinding is a configured binding and its live registration.
type boundBinding struct {
	binding config.Binding
	reg     *hotkeys.Registration
}

// Daemon owns one Manager for the life of the process.
//
// mu guards the binding table and the current config. It is never taken
// from activation listeners, which run on the sink's dispatch thread while
// TryAdd and Remove may be waiting on that same thread.
type Daemon struct {
	opts Options

	mu       sync.Mutex
	cfg      config.Config
	bound    map[string]*boundBinding
	failed   map[string]error
	started  bool
	shutdown bool

	manager     *hotkeys.Manager
	unsubscribe func()
	activations *sessionlog.Buffer[ActivationRecord]
	records     chan ActivationRecord
	store       *history.Store
	hub         *wsserver.Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce      sync.Once
	stopRequested chan struct{}
	shutdownOnce  sync.Once
	shutdownErr   error
}

// New validates opts and returns an unstarted Daemon.
func New(opts Options) (*Daemon, error) {
	if opts.ConfigPath == "" {
		return nil, errors.New("daemon: config path is required")
	}
	opts = opts.applyDefaults()
	return &Daemon{
		opts:          opts,
		bound:         map[string]*boundBinding{},
		failed:        map[string]error{},
		activations:   sessionlog.NewBuffer[ActivationRecord](opts.ActivationCapacity),
		records:       make(chan ActivationRecord, recordQueueSize),
		stopRequested: make(chan struct{}),
	}, nil
}

// Start loads the config, opens the manager, registers every enabled
// binding and starts the background workers. A binding that cannot be
// registered is logged and reported by "list"; it does not fail Start.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errAlreadyStarted
	}

	cfg, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("daemon: load config: %w", err)
	}

	managerOpts := d.opts.Manager
	if managerOpts.Debounce <= 0 {
		managerOpts.Debounce = cfg.DebounceOverride()
	}
	manager, err := hotkeys.NewManager(managerOpts)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	d.manager = manager
	d.unsubscribe = manager.Subscribe(d.onActivation)

	if cfg.HistoryDB != "" {
		store, storeErr := history.Open(ctx, cfg.HistoryDB)
		if storeErr != nil {
			slog.Warn("[WARN-DAEMON] history store unavailable, activations kept in memory only",
				"path", cfg.HistoryDB, "error", storeErr)
		} else {
			d.store = store
		}
	}
	if cfg.EventFeed.Enabled {
		hub := wsserver.NewHub(wsserver.HubOptions{Port: cfg.EventFeed.Port})
		if hubErr := hub.Start(ctx); hubErr != nil {
			slog.Warn("[WARN-DAEMON] activation feed unavailable", "port", cfg.EventFeed.Port, "error", hubErr)
		} else {
			d.hub = hub
		}
	}

	d.cfg = config.Clone(cfg)
	d.applyBindingsLocked(cfg.EnabledBindings())

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startWorkers(runCtx, cfg)
	d.started = true

	slog.Info("[DEBUG-DAEMON] started",
		"config", d.opts.ConfigPath,
		"bindings", len(d.bound),
		"failed", len(d.failed),
		"debounce", manager.DebounceInterval(),
	)
	return nil
}

func (d *Daemon) startWorkers(ctx context.Context, cfg config.Config) {
	workerutil.Supervise(ctx, "activation-recorder", &d.wg, d.recordLoop, workerutil.RecoveryOptions{})

	if !d.opts.DisableWatch {
		workerutil.Supervise(ctx, "config-watcher", &d.wg, func(ctx context.Context) error {
			return config.Watch(ctx, d.opts.ConfigPath, func() {
				if _, err := d.Reload(); err != nil {
					slog.Warn("[WARN-DAEMON] config reload failed, keeping previous bindings", "error", err)
				}
			})
		}, workerutil.RecoveryOptions{})
	}

	address := d.opts.ControlAddress
	if address == "" {
		address = ipc.DefaultAddress(cfg.ControlName)
	}
	workerutil.Supervise(ctx, "control-server", &d.wg, func(ctx context.Context) error {
		server := ipc.NewServer(address, d)
		if err := server.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		return server.Stop()
	}, workerutil.RecoveryOptions{
		OnFatal: func(worker string, lastErr error) {
			slog.Error("[DEBUG-DAEMON] control channel unavailable", "worker", worker, "error", lastErr)
		},
	})
}

// Done is closed when a control client asks the daemon to stop.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopRequested
}

func (d *Daemon) requestStop() {
	d.stopOnce.Do(func() { close(d.stopRequested) })
}

// Manager returns the running manager, or nil before Start.
func (d *Daemon) Manager() *hotkeys.Manager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.manager
}

// Shutdown stops the workers, unregisters every hotkey and closes the
// feed and the history store. Safe to call more than once.
func (d *Daemon) Shutdown() error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return errNotStarted
	}

	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		d.shutdown = true
		cancel := d.cancel
		d.mu.Unlock()

		cancel()
		d.wg.Wait()

		var errs []error
		d.unsubscribe()
		if err := d.manager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close manager: %w", err))
		}
		if d.hub != nil {
			if err := d.hub.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if d.store != nil {
			if err := d.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close history: %w", err))
			}
		}

		d.mu.Lock()
		d.bound = map[string]*boundBinding{}
		d.mu.Unlock()

		d.shutdownErr = errors.Join(errs...)
		slog.Info("[DEBUG-DAEMON] stopped", "error", d.shutdownErr)
	})
	return d.shutdownErr
}
