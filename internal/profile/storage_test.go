package profile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/layerctl/internal/layout"
)

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", "  ", "a/b", "..", "x..y"} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) succeeded", name)
		}
	}
	if err := ValidateName("work"); err != nil {
		t.Errorf("ValidateName(work) = %v", err)
	}
}

func TestWriteReadListDelete(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	names, err := List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List() on empty home = %v, %v", names, err)
	}

	p := &Profile{
		Name:    "desk",
		Screens: []Screen{{Connector: "HDMI-1", ID: 1001, Layers: []uint32{5}}},
		Layers: []Layer{{
			ID: 5, Width: 800, Height: 600, Visible: true, Opacity: 0.5,
			Dest:     layout.Rect{Width: 800, Height: 600},
			Surfaces: []Surface{{ID: 11, Visible: true, Opacity: 1, Dest: layout.Rect{X: 10, Y: 20, Width: 100, Height: 50}}},
		}},
	}
	if err := Write(p); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := Write(&Profile{Name: "alpha"}); err != nil {
		t.Fatal(err)
	}

	path, _ := Path("desk")
	if !strings.HasPrefix(path, filepath.Join(home, ".config", "layerctl", "profiles")) {
		t.Fatalf("Path(desk) = %q", path)
	}

	got, err := Read("desk")
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(got.Layers) != 1 || got.Layers[0].Opacity != 0.5 || got.Layers[0].Surfaces[0].Dest.Y != 20 {
		t.Fatalf("Read() = %+v", got)
	}
	if got.Screens[0].Connector != "HDMI-1" {
		t.Fatalf("Screens = %+v", got.Screens)
	}

	names, err = List()
	if err != nil || len(names) != 2 || names[0] != "alpha" || names[1] != "desk" {
		t.Fatalf("List() = %v, %v", names, err)
	}
	if err := Delete("desk"); err != nil {
		t.Fatal(err)
	}
	if _, err := Read("desk"); err == nil {
		t.Fatal("Read() after Delete succeeded")
	}
}
