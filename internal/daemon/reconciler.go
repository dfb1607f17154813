package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Ticker is driven by the reconciler. The controller implements it.
type Ticker interface {
	Tick()
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically polls the backend and commits compositor-side
// changes through the controller.
type Reconciler struct {
	target Ticker
	logger *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
}

// NewReconciler creates a new reconciler ticking target.
func NewReconciler(cfg ReconcilerConfig, target Ticker) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		target:   target,
		logger:   logger,
		interval: interval,
		reset:    make(chan struct{}, 1),
	}
}

// Interval returns the current period.
func (r *Reconciler) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// SetInterval changes the period. A running loop picks it up immediately.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	changed := r.interval != d
	r.interval = d
	r.mu.Unlock()
	if changed {
		select {
		case r.reset <- struct{}{}:
		default:
		}
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval())
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.Interval())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-r.reset:
			ticker.Reset(r.Interval())
			r.logger.Info("reconciler interval changed", "interval", r.Interval())
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()
	r.target.Tick()
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}
