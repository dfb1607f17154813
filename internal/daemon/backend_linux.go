//go:build linux

package daemon

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/layerctl/internal/compositor"
	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/x11"
)

func openBackend(cfg *config.Config, logger *slog.Logger) (*platform, error) {
	if cfg.Backend == config.BackendHeadless {
		return headlessPlatform(cfg), nil
	}
	conn, err := x11.NewConnection(cfg.X11Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to display: %w", err)
	}
	b, err := compositor.NewX11(compositor.X11Config{
		Conn:         conn,
		SeatName:     cfg.DefaultSeat,
		EnableCursor: cfg.EnableCursor,
		Logger:       logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &platform{backend: b, conn: conn}, nil
}
