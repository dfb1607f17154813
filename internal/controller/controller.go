// Package controller owns the authoritative scene on the daemon side. Every
// backend event and every control session request is funnelled through one
// dispatch queue, so scene, input and session state are only mutated from the
// goroutine running Run.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"deedles.dev/xsync"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/eventlog"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// DefaultScreenIDOffset is added to an output id to form its screen id.
const DefaultScreenIDOffset = 1000

// Config configures a Controller.
type Config struct {
	Scene   *layout.Scene
	Input   *input.Manager
	Backend compositor.Backend

	// ScreenFor maps an output to its screen id. Nil means output id plus
	// DefaultScreenIDOffset.
	ScreenFor func(outputID uint32, name string) uint32

	// BackgroundSurfaceID is never tracked. InvalidID disables the filter.
	BackgroundSurfaceID uint32

	Audit  *eventlog.Log
	Logger *slog.Logger
}

// Controller serves control sessions on top of a Scene.
type Controller struct {
	scene      *layout.Scene
	input      *input.Manager
	backend    compositor.Backend
	screenFor  func(uint32, string) uint32
	background uint32
	audit      *eventlog.Log
	log        *slog.Logger

	queue    *xsync.Queue[func()]
	qmu      sync.RWMutex
	stopped  bool
	started  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	unwatch  func()

	mu        sync.Mutex
	peers     map[uint64]ipc.Peer
	peerOrder []uint64

	// Dispatch goroutine only.
	outputs map[uint32]uint32
	dirty   bool
}

var _ ipc.Dispatcher = (*Controller)(nil)

// New creates a controller and attaches it to the scene.
func New(cfg Config) (*Controller, error) {
	if cfg.Scene == nil {
		return nil, errors.New("controller requires a scene")
	}
	if cfg.Backend == nil {
		return nil, errors.New("controller requires a backend")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	in := cfg.Input
	if in == nil {
		in = input.NewManager(input.Config{Logger: logger})
	}
	screenFor := cfg.ScreenFor
	if screenFor == nil {
		screenFor = func(id uint32, _ string) uint32 { return id + DefaultScreenIDOffset }
	}

	c := &Controller{
		scene:      cfg.Scene,
		input:      in,
		backend:    cfg.Backend,
		screenFor:  screenFor,
		background: cfg.BackgroundSurfaceID,
		audit:      cfg.Audit,
		log:        logger,
		queue:      new(xsync.Queue[func()]),
		started:    make(chan struct{}),
		stop:       make(chan struct{}),
		peers:      make(map[uint64]ipc.Peer),
		outputs:    make(map[uint32]uint32),
	}
	c.unwatch = c.scene.Watch(sceneWatcher{c})
	return c, nil
}

// Input returns the seat and focus state the controller maintains.
func (c *Controller) Input() *input.Manager { return c.input }

// Run starts the backend and processes the dispatch queue until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	if err := c.backend.Start(ctx, backendSink{c}); err != nil {
		return fmt.Errorf("failed to start %s backend: %w", c.backend.Name(), err)
	}
	close(c.started)
	c.log.Info("controller started", "backend", c.backend.Name())

	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopped")
			return nil
		case fn, ok := <-c.queue.Pop():
			if !ok {
				return nil
			}
			c.call(fn)
		}
	}
}

// Started is closed once the backend has reported its initial state.
// Requests queued after that observe it.
func (c *Controller) Started() <-chan struct{} { return c.started }

func (c *Controller) call(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error("controller panic recovered", "error", err)
		}
	}()
	fn()
}

func (c *Controller) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.unwatch()
		// The queue panics on a push after Stop.
		c.qmu.Lock()
		c.stopped = true
		c.qmu.Unlock()
		c.queue.Stop()
	})
}

// enqueue schedules fn on the dispatch goroutine. It drops fn once the
// controller has stopped.
func (c *Controller) enqueue(fn func()) {
	c.qmu.RLock()
	defer c.qmu.RUnlock()
	if c.stopped {
		return
	}
	c.queue.Push() <- fn
}

// Do runs fn on the dispatch goroutine and waits for it to finish.
func (c *Controller) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	c.enqueue(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-c.stop:
		return errors.New("controller stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick polls the backend if it needs polling and commits any
// compositor-side changes that arrived since the last commit.
func (c *Controller) Tick() {
	c.enqueue(func() {
		if p, ok := c.backend.(compositor.Poller); ok {
			if err := p.Poll(); err != nil {
				c.log.Warn("backend poll failed", "backend", c.backend.Name(), "error", err)
			}
		}
		// Poll queued its sink events ahead of this.
		c.enqueue(func() {
			if c.dirty {
				c.commit()
			}
		})
	})
}

// commit runs a scene commit pass and hands the result to the backend.
func (c *Controller) commit() {
	changed := c.scene.Commit()
	c.dirty = false
	if err := c.backend.Apply(c.scene.Snapshot()); err != nil {
		c.log.Error("backend apply failed", "backend", c.backend.Name(), "error", err)
	}
	c.log.Debug("scene committed", "changed", changed)
}

// Status reports counts for GET_STATUS.
func (c *Controller) Status() ipc.StatusData {
	surfaces, layers, screens := c.scene.Counts()
	c.mu.Lock()
	sessions := len(c.peers)
	c.mu.Unlock()
	return ipc.StatusData{
		Backend:  c.backend.Name(),
		Screens:  screens,
		Layers:   layers,
		Surfaces: surfaces,
		Seats:    len(c.input.Seats()),
		Sessions: sessions,
		Commits:  c.scene.Commits(),
	}
}
