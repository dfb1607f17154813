package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/layerctl/internal/arrange"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/runtimepath"
)

func runPlace(args []string) int {
	fs := newFlagSet("place", "layerctl place [flags]", "Wait for new surfaces and put each at a free random position on a new layer.")
	socket := fs.String("socket", "", "Control socket path")
	layerID := fs.Uint("layer", 1000, "Id of the layer to create")
	count := fs.Int("count", 0, "Exit after placing this many surfaces (0: run until interrupted)")
	display := fs.String("display", "", "Connector name of the screen to use (default: the widest)")
	claimsPath := fs.String("claims", "", "Claims file shared between placers (default: in the runtime dir)")
	reset := fs.Bool("reset", false, "Clear the claims file first")
	verbose := fs.Bool("v", false, "Log each placement")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *count < 0 {
		fmt.Fprintln(os.Stderr, "--count must be >= 0")
		return 2
	}

	path := *claimsPath
	if path == "" {
		var err error
		if path, err = runtimepath.ClaimsPath(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	claims := arrange.NewClaims(path)
	if *reset {
		if err := claims.Reset(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		id, err := arrange.PlaceNewSurfaces(ctx, c, arrange.PlaceConfig{
			LayerID: uint32(*layerID),
			Display: *display,
			Count:   *count,
			Claims:  claims,
			Logger:  logger,
		}, func(p arrange.Placement) {
			fmt.Printf("surface %d -> %s\n", p.SurfaceID, p.Rect)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if *count > 0 {
			fmt.Printf("placed %d surfaces on layer %d\n", *count, id)
		}
		return nil
	})
}
