// Package daemon wires the controller, its backend, the session server and
// the periodic reconciler into one process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/controller"
	"github.com/1broseidon/layerctl/internal/eventlog"
	"github.com/1broseidon/layerctl/internal/hotkeys"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
	"github.com/1broseidon/layerctl/internal/x11"
)

// Options configures Run.
type Options struct {
	// ConfigPath is re-read on SIGHUP and RELOAD. Empty means the default.
	ConfigPath string
	// LogOutput defaults to stderr.
	LogOutput io.Writer
	// Ready, if set, is called with the socket path once clients can connect.
	Ready func(socketPath string)
}

// platform is an opened backend. conn is nil unless the backend is X11.
type platform struct {
	backend compositor.Backend
	conn    *x11.Connection
}

func (p *platform) close() {
	p.backend.Close()
	if p.conn != nil {
		p.conn.Close()
	}
}

func headlessPlatform(cfg *config.Config) *platform {
	outputs := make([]compositor.Output, 0, len(cfg.HeadlessOutputs))
	x := 0
	for i, o := range cfg.HeadlessOutputs {
		outputs = append(outputs, compositor.Output{
			ID:     uint32(i + 1),
			Name:   o.Name,
			Bounds: layout.Rect{X: x, Width: o.Width, Height: o.Height},
		})
		x += o.Width
	}
	caps := input.DeviceKeyboard
	if cfg.EnableCursor {
		caps |= input.DevicePointer
	}
	seats := []compositor.Seat{{Name: cfg.DefaultSeat, Caps: caps}}
	return &platform{backend: compositor.NewHeadless(outputs, seats)}
}

func auditConfig(cfg *config.Config) eventlog.Config {
	a := cfg.GetAuditConfig()
	return eventlog.Config{
		Enabled:   a.Enabled,
		FilePath:  a.File,
		MaxSizeMB: a.MaxSizeMB,
		MaxFiles:  a.MaxFiles,
	}
}

// Run runs the daemon until ctx is cancelled or SIGINT/SIGTERM arrives.
// SIGHUP reloads the configuration.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logs := NewLogs(out, cfg)

	audit, err := eventlog.Open(auditConfig(cfg))
	if err != nil {
		return err
	}
	defer audit.Close()

	plat, err := openBackend(cfg, logs.Logger("backend"))
	if err != nil {
		return err
	}
	defer plat.close()

	background := cfg.BackgroundSurfaceID
	if background == 0 {
		background = layout.InvalidID
	}
	ctrl, err := controller.New(controller.Config{
		Scene:               layout.NewScene(layout.Options{}),
		Input:               input.NewManager(input.Config{DefaultSeat: cfg.DefaultSeat, Logger: logs.Logger("input")}),
		Backend:             plat.backend,
		ScreenFor:           cfg.ScreenFor,
		BackgroundSurfaceID: background,
		Audit:               audit,
		Logger:              logs.Logger("controller"),
	})
	if err != nil {
		return err
	}

	reloadChan := make(chan *config.Config, 1)
	server, err := ipc.NewServer(ipc.ServerConfig{
		SocketPath: cfg.SocketPath,
		ConfigPath: opts.ConfigPath,
		Dispatcher: ctrl,
		ReloadChan: reloadChan,
		Logger:     logs.Logger("ipc"),
	})
	if err != nil {
		return err
	}
	reconciler := NewReconciler(ReconcilerConfig{
		Interval: cfg.CommitInterval,
		Logger:   logs.Logger("controller"),
	}, ctrl)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ctrl.Run(ctx) })
	select {
	case <-ctrl.Started():
	case <-ctx.Done():
		return g.Wait()
	}
	if err := server.Start(); err != nil {
		stop()
		g.Wait()
		return err
	}
	defer server.Stop()
	g.Go(func() error { return reconciler.Run(ctx) })

	var keys atomic.Pointer[hotkeys.Handler]
	if plat.conn != nil {
		conn := plat.conn
		bindings := cfg.Hotkeys
		client := control.New(control.Config{SocketPath: server.SocketPath(), Logger: logs.Logger("ipc")})
		g.Go(func() error {
			initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := client.Init(initCtx); err != nil {
				return fmt.Errorf("hotkey client: %w", err)
			}
			defer client.Destroy()
			h := hotkeys.NewHandler(conn, hotkeys.NewActions(client, 0), logs.Logger("input"))
			log.Printf("Registered %d hotkeys", h.Bind(bindings))
			keys.Store(h)

			go func() {
				<-ctx.Done()
				conn.Quit()
			}()
			log.Println("Entering event loop...")
			conn.EventLoop()
			if ctx.Err() == nil {
				return errors.New("x11 event loop exited")
			}
			return nil
		})
	} else if len(cfg.Hotkeys) > 0 {
		log.Printf("Hotkeys need the %s backend; ignoring %d bindings", config.BackendX11, len(cfg.Hotkeys))
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	current := cfg
	g.Go(func() error {
		for {
			var next *config.Config
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				log.Println("Received SIGHUP, reloading config...")
				var err error
				if opts.ConfigPath != "" {
					next, err = config.LoadFromPath(opts.ConfigPath)
				} else {
					next, err = config.Load()
				}
				if err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
			case next = <-reloadChan:
			}
			applyReload(current, next, logs, reconciler, keys.Load())
			current = next
		}
	})

	log.Printf("layerctl daemon started (backend: %s, socket: %s)", plat.backend.Name(), server.SocketPath())
	if opts.Ready != nil {
		opts.Ready(server.SocketPath())
	}

	err = g.Wait()
	log.Println("Shutting down layerctl daemon...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyReload applies the settings that can change at runtime and warns
// about the rest.
func applyReload(prev, next *config.Config, logs *Logs, r *Reconciler, keys *hotkeys.Handler) {
	logs.Apply(next)
	r.SetInterval(next.CommitInterval)
	if keys != nil {
		keys.Bind(next.Hotkeys)
	}
	if prev.Backend != next.Backend || prev.ScreenIDOffset != next.ScreenIDOffset ||
		prev.DefaultSeat != next.DefaultSeat || prev.BackgroundSurfaceID != next.BackgroundSurfaceID ||
		prev.SocketPath != next.SocketPath || prev.X11Display != next.X11Display ||
		prev.Logging.Audit != next.Logging.Audit {
		log.Println("Some changed settings only take effect after a restart")
	}
	log.Println("Config reloaded successfully")
}
