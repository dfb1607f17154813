package layout

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidID is the sentinel id. Passing it to a create call asks the scene to
// pick the next unused id.
const InvalidID uint32 = 0xFFFFFFFF

var (
	ErrNotFound         = errors.New("object not found")
	ErrDuplicateID      = errors.New("id already in use")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Kind identifies one of the three object collections.
type Kind int

const (
	KindSurface Kind = iota
	KindLayer
	KindScreen
)

func (k Kind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindLayer:
		return "layer"
	case KindScreen:
		return "screen"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "surface":
		return KindSurface, nil
	case "layer":
		return KindLayer, nil
	case "screen":
		return KindScreen, nil
	default:
		return 0, fmt.Errorf("unknown object kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rect describes a rectangle in output coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// Valid reports whether the rectangle has no negative component.
func (r Rect) Valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 0 && r.Height >= 0
}

// Mask is the set of properties that changed in one commit pass.
type Mask uint32

const (
	MaskVisibility       Mask = 1 << 0
	MaskOpacity          Mask = 1 << 1
	MaskSourceRect       Mask = 1 << 3
	MaskDestRect         Mask = 1 << 4
	MaskContentAvailable Mask = 1 << 5
	MaskConfigured       Mask = 1 << 7

	// LayerMask is every bit a layer can report.
	LayerMask = MaskVisibility | MaskOpacity | MaskSourceRect | MaskDestRect
	// SurfaceMask is every bit a surface can report.
	SurfaceMask = LayerMask | MaskContentAvailable | MaskConfigured
)

var maskNames = []struct {
	bit  Mask
	name string
}{
	{MaskVisibility, "visibility"},
	{MaskOpacity, "opacity"},
	{MaskSourceRect, "source_rect"},
	{MaskDestRect, "dest_rect"},
	{MaskContentAvailable, "content_available"},
	{MaskConfigured, "configured"},
}

// Has reports whether every bit of other is set in m.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, n := range maskNames {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := m &^ SurfaceMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// SurfaceType selects how the compositor treats a surface.
type SurfaceType int

const (
	SurfaceTypeDefault SurfaceType = iota
	SurfaceTypeDesktop
)

func (t SurfaceType) String() string {
	switch t {
	case SurfaceTypeDefault:
		return "default"
	case SurfaceTypeDesktop:
		return "desktop"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseSurfaceType converts a type name to a SurfaceType.
func ParseSurfaceType(s string) (SurfaceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default", "":
		return SurfaceTypeDefault, nil
	case "desktop":
		return SurfaceTypeDesktop, nil
	default:
		return 0, fmt.Errorf("unknown surface type %q", s)
	}
}

// SurfaceProperties is the full property snapshot of a surface.
type SurfaceProperties struct {
	Opacity          float64     `json:"opacity"`
	SourceRect       Rect        `json:"source_rect"`
	DestRect         Rect        `json:"dest_rect"`
	Visibility       bool        `json:"visibility"`
	OrigSourceWidth  int         `json:"orig_source_width"`
	OrigSourceHeight int         `json:"orig_source_height"`
	ContentAvailable bool        `json:"content_available"`
	FrameCounter     uint32      `json:"frame_counter"`
	CreatorPID       int         `json:"creator_pid"`
	Type             SurfaceType `json:"type"`
}

// LayerProperties is the full property snapshot of a layer.
type LayerProperties struct {
	Opacity          float64 `json:"opacity"`
	SourceRect       Rect    `json:"source_rect"`
	DestRect         Rect    `json:"dest_rect"`
	Visibility       bool    `json:"visibility"`
	OrigSourceWidth  int     `json:"orig_source_width"`
	OrigSourceHeight int     `json:"orig_source_height"`
}

// ScreenProperties describes an output.
type ScreenProperties struct {
	ConnectorName string `json:"connector_name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

// DefaultSurfaceProperties returns the properties of a freshly created surface.
func DefaultSurfaceProperties() SurfaceProperties {
	return SurfaceProperties{Opacity: 1}
}

// DefaultLayerProperties returns the properties of a layer created with the
// given dimensions. The destination rectangle stays empty until it is set.
func DefaultLayerProperties(width, height int) LayerProperties {
	return LayerProperties{
		Opacity:          1,
		SourceRect:       Rect{Width: width, Height: height},
		OrigSourceWidth:  width,
		OrigSourceHeight: height,
	}
}
