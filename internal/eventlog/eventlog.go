// Package eventlog writes an append-only audit trail of control-protocol
// mutations, rotating the file once it reaches a size limit.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Action names a recorded mutation.
type Action string

const (
	ActionCreate      Action = "CREATE"
	ActionRemove      Action = "REMOVE"
	ActionProperty    Action = "PROPERTY"
	ActionRenderOrder Action = "RENDER-ORDER"
	ActionMembership  Action = "MEMBERSHIP"
	ActionInput       Action = "INPUT"
	ActionCommit      Action = "COMMIT"
	ActionBind        Action = "BIND"
	ActionUnbind      Action = "UNBIND"
	ActionError       Action = "ERROR"
)

// Config configures a Log.
type Config struct {
	Enabled   bool
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Entry is one audit record.
type Entry struct {
	Action  Action
	Object  string // "surface", "layer", "screen", "seat" or empty
	ID      uint32
	Session uint64
	Details map[string]any
}

// Log is a size-rotated audit file. A nil or disabled Log drops entries.
type Log struct {
	mu          sync.Mutex
	file        *os.File
	cfg         Config
	currentSize int64
}

// Open creates the log directory and opens the file for appending.
func Open(cfg Config) (*Log, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.Enabled {
		return &Log{cfg: cfg}, nil
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 3
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", cfg.FilePath, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat audit log: %w", err)
	}
	return &Log{file: f, cfg: cfg, currentSize: stat.Size()}, nil
}

// Record appends e. Write failures are reported on stderr and otherwise
// ignored.
func (l *Log) Record(e Entry) {
	if l == nil || !l.cfg.Enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	if l.currentSize >= int64(l.cfg.MaxSizeMB)*1024*1024 {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "audit log rotation failed: %v\n", err)
		}
		if l.file == nil {
			return
		}
	}

	n, err := l.file.WriteString(format(l.cfg.Now(), e))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write audit entry: %v\n", err)
		return
	}
	l.currentSize += int64(n)
}

func format(ts time.Time, e Entry) string {
	var sb strings.Builder
	sb.WriteString(ts.Format("2006-01-02 15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(string(e.Action))
	sb.WriteString("]")
	if e.Session != 0 {
		fmt.Fprintf(&sb, " session=%d", e.Session)
	}
	if e.Object != "" {
		fmt.Fprintf(&sb, " %s=%d", e.Object, e.ID)
	}

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := e.Details[k].(type) {
		case string:
			fmt.Fprintf(&sb, " %s=%q", k, v)
		default:
			fmt.Fprintf(&sb, " %s=%v", k, v)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// Close flushes and closes the file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate shifts audit.log.N to .N+1, dropping the oldest, and reopens.
func (l *Log) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	base := l.cfg.FilePath
	os.Remove(fmt.Sprintf("%s.%d", base, l.cfg.MaxFiles))
	for i := l.cfg.MaxFiles - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", base, i), fmt.Sprintf("%s.%d", base, i+1))
	}
	if err := os.Rename(base, base+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	f, err := os.OpenFile(base, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new audit log: %w", err)
	}
	l.file = f
	l.currentSize = 0
	return nil
}
