package daemon

import (
	"bytes"
	"strings"
	"testing"

	"github.com/1broseidon/layerctl/internal/config"
)

func TestLogs_DebugScopes(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.DebugScopes = []string{"input"}
	logs := NewLogs(&buf, cfg)

	logs.Logger("controller").Debug("hidden")
	logs.Logger("input").Debug("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("controller debug record logged at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "scope=input") {
		t.Fatalf("input debug record missing: %q", out)
	}

	buf.Reset()
	cfg.DebugScopes = nil
	cfg.Logging.Level = "error"
	logs.Apply(cfg)
	logs.Logger("input").Warn("quiet")
	if buf.Len() != 0 {
		t.Fatalf("warn logged at error level after reload: %q", buf.String())
	}
}
