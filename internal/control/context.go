// Package control is the client side of the layerctl control protocol. A
// Context keeps a mirror of the daemon's scene that is refreshed by a sync
// round trip before every query; mutations are sent one-way and rejected
// requests come back later as ProtocolErrors.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deedles.dev/xsync"

	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/layout"
)

// State is the lifecycle state of a Context.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	// StateDisconnected means the session was lost. Every operation fails
	// until Destroy is called.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting down"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is a bound control session.
type Transport interface {
	Send(req *ipc.Request) error
	// Recv blocks for the next event. It is only called from one goroutine.
	Recv() (*ipc.Event, error)
	Close() error
}

var _ Transport = (*ipc.SessionConn)(nil)

// Config configures a Context.
type Config struct {
	// SocketPath defaults to the runtime socket.
	SocketPath  string
	DialTimeout time.Duration
	// Transport, if set, is used instead of dialing.
	Transport Transport
	// ErrorBuffer is the capacity of the Errors channel. Errors are dropped
	// when it is full.
	ErrorBuffer int
	Logger      *slog.Logger
}

// Context is one connection to the daemon. Its methods are safe for
// concurrent use, except that queries must not be issued after Destroy has
// started.
type Context struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	state   State
	tr      Transport
	serial  uint32
	waiters map[uint32]chan error
	mirror  *mirror
	// reserved holds created ids whose CREATED or ERROR event has not
	// arrived yet.
	reserved map[objectKey]struct{}

	listeners listeners
	shutdown  func()
	errs      chan ProtocolError

	events    *xsync.Queue[*ipc.Event]
	callbacks *xsync.Queue[func()]
	done      chan struct{}
	// wg tracks the reader and the dispatcher. The callback goroutine is
	// not waited for, so a listener may call Destroy.
	wg sync.WaitGroup
}

type objectKey struct {
	kind layout.Kind
	id   uint32
}

// New creates an uninitialized context.
func New(cfg Config) *Context {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ErrorBuffer <= 0 {
		cfg.ErrorBuffer = 64
	}
	return &Context{
		cfg:  cfg,
		log:  logger,
		errs: make(chan ProtocolError, cfg.ErrorBuffer),
		listeners: listeners{
			surface: make(map[uint32]SurfaceListener),
			layer:   make(map[uint32]LayerListener),
		},
	}
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errors delivers protocol errors for rejected requests.
func (c *Context) Errors() <-chan ProtocolError {
	return c.errs
}

// Init connects, binds a session and completes an initial sync. Calling Init
// on a ready context succeeds without doing anything.
func (c *Context) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateUninitialized:
	default:
		st := c.state
		c.mu.Unlock()
		return failedf("init while %s", st)
	}
	c.state = StateInitializing
	c.mu.Unlock()

	tr := c.cfg.Transport
	if tr == nil {
		sc, err := ipc.DialSession(c.cfg.SocketPath, c.cfg.DialTimeout)
		if err != nil {
			c.setState(StateUninitialized)
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		tr = sc
	}

	c.mu.Lock()
	c.tr = tr
	c.waiters = make(map[uint32]chan error)
	c.mirror = newMirror()
	c.reserved = make(map[objectKey]struct{})
	c.done = make(chan struct{})
	c.events = new(xsync.Queue[*ipc.Event])
	c.callbacks = new(xsync.Queue[func()])
	events, callbacks, done := c.events, c.callbacks, c.done
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(tr, events, callbacks, done)
	go c.dispatchLoop(events, callbacks, done)
	go c.callbackLoop(callbacks, done)

	if err := c.roundTrip(ctx); err != nil {
		c.teardown()
		return err
	}
	c.setState(StateReady)
	c.log.Debug("control context ready")
	return nil
}

// Destroy closes the session. It fails on an uninitialized context. It may be
// called from a listener; listeners already running can still be finishing
// when it returns.
func (c *Context) Destroy() error {
	c.mu.Lock()
	if c.state == StateUninitialized || c.state == StateShuttingDown {
		st := c.state
		c.mu.Unlock()
		return failedf("destroy while %s", st)
	}
	c.state = StateShuttingDown
	c.mu.Unlock()

	c.teardown()
	return nil
}

func (c *Context) teardown() {
	c.mu.Lock()
	tr := c.tr
	done := c.done
	events, callbacks := c.events, c.callbacks
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	var err error
	if tr != nil {
		err = tr.Close()
	}
	c.wg.Wait()
	// Nothing pushes once the reader and dispatcher are gone.
	if events != nil {
		events.Stop()
		callbacks.Stop()
	}

	c.mu.Lock()
	c.failWaitersLocked(errors.New("context destroyed"))
	c.tr = nil
	c.done = nil
	c.state = StateUninitialized
	c.mu.Unlock()
	if err != nil {
		c.log.Debug("transport close", "error", err)
	}
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Context) failWaitersLocked(cause error) {
	for serial, ch := range c.waiters {
		ch <- fmt.Errorf("%w: %v", ErrFailed, cause)
		delete(c.waiters, serial)
	}
}

func (c *Context) readLoop(tr Transport, events *xsync.Queue[*ipc.Event], callbacks *xsync.Queue[func()], done <-chan struct{}) {
	defer c.wg.Done()
	for {
		ev, err := tr.Recv()
		if err != nil {
			c.lost(err, callbacks, done)
			return
		}
		select {
		case <-done:
			return
		case events.Push() <- ev:
		}
	}
}

// lost handles the read side of the session failing. Unless Destroy caused
// it, the context becomes disconnected and the shutdown listener runs once.
func (c *Context) lost(err error, callbacks *xsync.Queue[func()], done <-chan struct{}) {
	c.mu.Lock()
	c.failWaitersLocked(fmt.Errorf("transport: %v", err))
	wasReady := c.state == StateReady
	if wasReady || c.state == StateInitializing {
		c.state = StateDisconnected
	}
	fn := c.shutdown
	c.mu.Unlock()
	if !wasReady {
		return
	}

	c.log.Warn("control session lost", "error", err)
	if fn == nil {
		return
	}
	select {
	case <-done:
	case callbacks.Push() <- fn:
	}
}

func (c *Context) dispatchLoop(events *xsync.Queue[*ipc.Event], callbacks *xsync.Queue[func()], done <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev := <-events.Pop():
			c.dispatch(ev, callbacks, done)
		}
	}
}

func (c *Context) callbackLoop(callbacks *xsync.Queue[func()], done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case fn, ok := <-callbacks.Pop():
			if !ok {
				return
			}
			fn()
		}
	}
}

func (c *Context) dispatch(ev *ipc.Event, callbacks *xsync.Queue[func()], done <-chan struct{}) {
	if ev.Type == ipc.EventDone {
		c.mu.Lock()
		if ch, ok := c.waiters[ev.Serial]; ok {
			delete(c.waiters, ev.Serial)
			ch <- nil
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	payload, err := c.mirror.apply(ev)
	if err == nil {
		c.releaseReservedLocked(ev, payload)
	}
	calls := c.listeners.collect(ev, payload)
	c.mu.Unlock()
	if err != nil {
		c.log.Warn("dropping malformed event", "type", ev.Type, "error", err)
		return
	}

	if p, ok := payload.(ipc.ErrorPayload); ok {
		perr := ProtocolError{Kind: p.ObjectKind, ID: p.ObjectID, Code: p.Code, Message: p.Message}
		select {
		case c.errs <- perr:
		default:
			c.log.Warn("protocol error dropped, channel full", "error", perr)
		}
	}
	for _, fn := range calls {
		select {
		case <-done:
			return
		case callbacks.Push() <- fn:
		}
	}
}

func (c *Context) releaseReservedLocked(ev *ipc.Event, payload any) {
	switch p := payload.(type) {
	case ipc.LayerPayload:
		if ev.Type == ipc.EventLayerCreated {
			delete(c.reserved, objectKey{layout.KindLayer, p.ID})
		}
	case ipc.SurfacePayload:
		if ev.Type == ipc.EventSurfaceCreated {
			delete(c.reserved, objectKey{layout.KindSurface, p.ID})
		}
	case ipc.ErrorPayload:
		// A rejected create frees its id again.
		delete(c.reserved, objectKey{p.ObjectKind, p.ObjectID})
	}
}

// ready returns the transport if the context can talk to the daemon.
func (c *Context) ready() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil, failedf("context is %s", c.state)
	}
	return c.tr, nil
}

// roundTrip sends SYNC and waits until every earlier event was applied to
// the mirror.
func (c *Context) roundTrip(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady && c.state != StateInitializing {
		st := c.state
		c.mu.Unlock()
		return failedf("context is %s", st)
	}
	c.serial++
	serial := c.serial
	ch := make(chan error, 1)
	c.waiters[serial] = ch
	tr := c.tr
	c.mu.Unlock()

	if err := tr.Send(&ipc.Request{Command: ipc.CommandSync, Serial: serial}); err != nil {
		c.mu.Lock()
		delete(c.waiters, serial)
		c.mu.Unlock()
		return fmt.Errorf("%w: sync: %v", ErrFailed, err)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.waiters, serial)
		c.mu.Unlock()
		return fmt.Errorf("%w: sync: %v", ErrFailed, ctx.Err())
	}
}

// Sync waits until the daemon has processed every request sent so far.
func (c *Context) Sync(ctx context.Context) error {
	if _, err := c.ready(); err != nil {
		return err
	}
	return c.roundTrip(ctx)
}

// send writes one request on a ready context.
func (c *Context) send(cmd ipc.CommandType, payload any) error {
	tr, err := c.ready()
	if err != nil {
		return err
	}
	req, err := ipc.NewRequest(cmd, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := tr.Send(req); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFailed, cmd, err)
	}
	return nil
}

// view syncs and then runs fn against the mirror.
func (c *Context) view(ctx context.Context, fn func(m *mirror) error) error {
	if _, err := c.ready(); err != nil {
		return err
	}
	if err := c.roundTrip(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.mirror)
}
