package hotkeys

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Handler manages global keyboard shortcuts bound to layer actions.
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	actions *Actions
	log     *slog.Logger

	mu    sync.Mutex
	bound []config.Hotkey
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler on an X connection.
func NewHandler(conn *x11.Connection, actions *Actions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(conn.XUtil)
	})
	return &Handler{
		xu:      conn.XUtil,
		root:    conn.Root,
		actions: actions,
		log:     logger,
	}
}

// Bind replaces every registered hotkey with keys. Keys that fail to grab
// are logged and skipped; the number bound is returned.
func (h *Handler) Bind(keys []config.Hotkey) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.bound) > 0 {
		keybind.Detach(h.xu, h.root)
	}
	h.bound = h.bound[:0]
	for _, hk := range keys {
		if err := h.register(hk); err != nil {
			h.log.Warn("failed to register hotkey", "key", hk.Key, "action", hk.Action, "error", err)
			continue
		}
		h.bound = append(h.bound, hk)
		h.log.Info("hotkey registered", "key", hk.Key, "action", hk.Action, "layer_id", hk.LayerID)
	}
	return len(h.bound)
}

func (h *Handler) register(hk config.Hotkey) error {
	return h.RegisterFunc(hk.Key, func() {
		h.log.Debug("hotkey triggered", "key", hk.Key, "action", hk.Action)
		// Actions block on a daemon round trip.
		go func() {
			if err := h.actions.Run(hk.Action, hk.LayerID); err != nil {
				h.log.Warn("hotkey action failed", "key", hk.Key, "error", err)
			}
		}()
	})
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true); err != nil {
		return fmt.Errorf("grab %q: %w", keySequence, err)
	}
	return nil
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := map[uint16]struct{}{0: {}}
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
