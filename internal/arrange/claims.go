package arrange

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/1broseidon/layerctl/internal/layout"
)

// Claims is an append-only file of rectangles already handed out by place.
// Each line is "x1,y1,x2,y2". Concurrent processes serialise on an advisory
// lock around Claim.
type Claims struct {
	path string
}

// NewClaims uses the claims file at path.
func NewClaims(path string) *Claims {
	return &Claims{path: path}
}

// Path returns the claims file path.
func (c *Claims) Path() string { return c.path }

// Reset empties the claims file.
func (c *Claims) Reset() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create claims directory: %w", err)
	}
	if err := os.WriteFile(c.path, nil, 0600); err != nil {
		return fmt.Errorf("failed to reset claims: %w", err)
	}
	return nil
}

// Load returns every claimed rectangle. A missing file has no claims.
func (c *Claims) Load() ([]layout.Rect, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open claims: %w", err)
	}
	defer f.Close()
	return readClaims(f)
}

func readClaims(r io.Reader) ([]layout.Rect, error) {
	var out []layout.Rect
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("claims line %d: want x1,y1,x2,y2", line)
		}
		var v [4]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("claims line %d: %w", line, err)
			}
			v[i] = n
		}
		out = append(out, layout.Rect{X: v[0], Y: v[1], Width: v[2] - v[0], Height: v[3] - v[1]})
	}
	return out, sc.Err()
}

// Claim runs pick with the current claims under the file lock and appends
// the rectangle it returns. pick reports false to claim nothing.
func (c *Claims) Claim(pick func(claimed []layout.Rect) (layout.Rect, bool)) (layout.Rect, bool, error) {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return layout.Rect{}, false, fmt.Errorf("failed to create claims directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return layout.Rect{}, false, fmt.Errorf("failed to open claims: %w", err)
	}
	defer f.Close()

	unlock, err := lockFile(f)
	if err != nil {
		return layout.Rect{}, false, fmt.Errorf("failed to lock claims: %w", err)
	}
	defer unlock()

	claimed, err := readClaims(f)
	if err != nil {
		return layout.Rect{}, false, err
	}
	r, ok := pick(claimed)
	if !ok {
		return layout.Rect{}, false, nil
	}
	if _, err := fmt.Fprintf(f, "%d,%d,%d,%d\n", r.X, r.Y, r.X+r.Width, r.Y+r.Height); err != nil {
		return layout.Rect{}, false, fmt.Errorf("failed to write claim: %w", err)
	}
	return r, true, nil
}
