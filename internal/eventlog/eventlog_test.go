package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestRecord_FormatsSortedDetails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(Config{Enabled: true, FilePath: path, Now: fixedNow})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	l.Record(Entry{
		Action:  ActionProperty,
		Object:  "layer",
		ID:      600,
		Session: 2,
		Details: map[string]any{"visible": true, "command": "LAYER_SET_VISIBILITY"},
	})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `2026-03-01 12:00:00 [PROPERTY] session=2 layer=600 command="LAYER_SET_VISIBILITY" visible=true` + "\n"
	if string(data) != want {
		t.Fatalf("log = %q, want %q", data, want)
	}
}

func TestRecord_DisabledAndNilAreNoops(t *testing.T) {
	var nilLog *Log
	nilLog.Record(Entry{Action: ActionCommit})

	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(Config{Enabled: false, FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Record(Entry{Action: ActionCommit})
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("disabled log created %s", path)
	}
}

func TestRecord_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := Open(Config{Enabled: true, FilePath: path, MaxSizeMB: 1, MaxFiles: 2, Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	big := strings.Repeat("x", 1024*1024)
	l.Record(Entry{Action: ActionCommit, Details: map[string]any{"pad": big}})
	l.Record(Entry{Action: ActionCommit})

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "pad=") {
		t.Fatal("current log still holds pre-rotation entry")
	}
}
