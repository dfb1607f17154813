package daemon

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/ipc"
)

func TestRun_HeadlessServesClients(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendHeadless
	cfg.HeadlessOutputs = []config.HeadlessOutput{
		{Name: "LEFT", Width: 800, Height: 600},
		{Name: "RIGHT", Width: 1024, Height: 768},
	}
	cfg.Screens = []config.ScreenEntry{{Name: "RIGHT", ID: 7}}
	cfg.SocketPath = filepath.Join(t.TempDir(), "layerctl.sock")
	cfg.Logging.Audit.File = filepath.Join(t.TempDir(), "audit.log")

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{
			ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
			LogOutput:  &bytes.Buffer{},
			Ready:      func(path string) { ready <- path },
		})
	}()

	var socket string
	select {
	case socket = <-ready:
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon not ready")
	}

	c := control.New(control.Config{SocketPath: socket})
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	screens, err := c.ScreenIDs(context.Background())
	if err != nil || len(screens) != 2 || screens[0] != 1001 || screens[1] != 7 {
		t.Fatalf("ScreenIDs() = %v, %v, want [1001 7]", screens, err)
	}
	c.Destroy()

	status, err := ipc.NewClient(socket).GetStatus()
	if err != nil || status.Backend != "headless" || status.Screens != 2 {
		t.Fatalf("GetStatus() = %+v, %v", status, err)
	}
	if err := ipc.NewClient(socket).Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestHeadlessPlatform_LaysOutputsSideBySide(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HeadlessOutputs = []config.HeadlessOutput{
		{Name: "A", Width: 100, Height: 50},
		{Name: "B", Width: 200, Height: 50},
	}
	p := headlessPlatform(cfg)
	if p.conn != nil || p.backend.Name() != "headless" {
		t.Fatalf("platform = %+v", p)
	}
}
