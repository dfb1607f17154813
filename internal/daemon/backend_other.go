//go:build !linux

package daemon

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/layerctl/internal/config"
)

func openBackend(cfg *config.Config, _ *slog.Logger) (*platform, error) {
	if cfg.Backend == config.BackendHeadless {
		return headlessPlatform(cfg), nil
	}
	return nil, fmt.Errorf("backend %q is only supported on linux", cfg.Backend)
}
