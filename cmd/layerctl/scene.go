package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/1broseidon/layerctl/internal/arrange"
	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Println(t)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint32(v), nil
}

func parseIDs(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseRect accepts "x,y,w,h" or "x,y wxh".
func parseRect(s string) (layout.Rect, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == 'x' })
	if len(fields) != 4 {
		return layout.Rect{}, fmt.Errorf("rect %q must be x,y,w,h", s)
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return layout.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = n
	}
	r := layout.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !r.Valid() {
		return layout.Rect{}, fmt.Errorf("rect %q has negative components", s)
	}
	return r, nil
}

func idList(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func parentID(id uint32) string {
	if id == layout.InvalidID {
		return "-"
	}
	return strconv.FormatUint(uint64(id), 10)
}

func runList(args []string) int {
	fs := newFlagSet("list", "layerctl list [--json] [--socket PATH]", "List screens, layers, surfaces and seats.")
	socket := fs.String("socket", "", "Control socket path")
	asJSON := fs.Bool("json", false, "Print the scene as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		scene, err := c.Scene(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(scene)
		}

		var rows [][]string
		for _, s := range scene.Screens {
			rows = append(rows, []string{"screen", fmt.Sprint(s.ID), s.ConnectorName, fmt.Sprintf("%dx%d", s.Width, s.Height), "", "", idList(s.Layers)})
		}
		for _, l := range scene.Layers {
			rows = append(rows, []string{"layer", fmt.Sprint(l.ID), "screen " + parentID(l.Screen), l.DestRect.String(), onOff(l.Visibility), fmt.Sprintf("%.2f", l.Opacity), idList(l.Surfaces)})
		}
		for _, s := range scene.Surfaces {
			rows = append(rows, []string{"surface", fmt.Sprint(s.ID), "layer " + parentID(s.Layer), s.DestRect.String(), onOff(s.Visibility), fmt.Sprintf("%.2f", s.Opacity), ""})
		}
		printTable([]string{"KIND", "ID", "WHERE", "GEOMETRY", "VISIBLE", "OPACITY", "CHILDREN"}, rows)

		if len(scene.Seats) > 0 {
			var seats [][]string
			for _, s := range scene.Seats {
				seats = append(seats, []string{s.Name, s.Capabilities.String()})
			}
			printTable([]string{"SEAT", "CAPABILITIES"}, seats)
		}
		return nil
	})
}

func runGet(args []string) int {
	fs := newFlagSet("get", "layerctl get <screen|layer|surface> <id> [--socket PATH]", "Print one object as JSON.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	kind, err := layout.ParseKind(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	id, err := parseID(fs.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		var v any
		var err error
		switch kind {
		case layout.KindScreen:
			v, err = c.Screen(ctx, id)
		case layout.KindLayer:
			v, err = c.Layer(ctx, id)
		case layout.KindSurface:
			v, err = c.Surface(ctx, id)
		default:
			return fmt.Errorf("cannot get a %s", kind)
		}
		if err != nil {
			return err
		}
		return printJSON(v)
	})
}

// propertyCalls turns the set flags into control calls for kind.
type propertyCalls struct {
	visible func(uint32, bool) error
	opacity func(uint32, float64) error
	source  func(uint32, layout.Rect) error
	dest    func(uint32, layout.Rect) error
}

func runSet(args []string) int {
	fs := newFlagSet("set", "layerctl set <layer|surface> <id> [flags]", "Change properties of a layer or surface and commit.")
	socket := fs.String("socket", "", "Control socket path")
	visible := fs.String("visible", "", "on or off")
	opacity := fs.Float64("opacity", 1, "Opacity in [0,1]")
	source := fs.String("source", "", "Source rectangle x,y,w,h")
	dest := fs.String("dest", "", "Destination rectangle x,y,w,h")
	typ := fs.String("type", "", "Surface type: default or desktop")
	noCommit := fs.Bool("no-commit", false, "Stage the changes without committing")

	// Flags may follow the positional kind and id.
	var pos []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		pos = append(pos, args[0])
		args = args[1:]
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	pos = append(pos, fs.Args()...)
	if len(pos) != 2 {
		fs.Usage()
		return 2
	}
	kind, err := layout.ParseKind(pos[0])
	if err != nil || (kind != layout.KindLayer && kind != layout.KindSurface) {
		fmt.Fprintf(os.Stderr, "set expects layer or surface, got %q\n", pos[0])
		return 2
	}
	id, err := parseID(pos[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })
	if given["type"] && kind != layout.KindSurface {
		fmt.Fprintln(os.Stderr, "--type only applies to surfaces")
		return 2
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		calls := propertyCalls{c.LayerSetVisibility, c.LayerSetOpacity, c.LayerSetSourceRect, c.LayerSetDestRect}
		if kind == layout.KindSurface {
			calls = propertyCalls{c.SurfaceSetVisibility, c.SurfaceSetOpacity, c.SurfaceSetSourceRect, c.SurfaceSetDestRect}
		}

		if given["visible"] {
			v, err := parseOnOff(*visible)
			if err != nil {
				return err
			}
			if err := calls.visible(id, v); err != nil {
				return err
			}
		}
		if given["opacity"] {
			if err := calls.opacity(id, *opacity); err != nil {
				return err
			}
		}
		if given["source"] {
			r, err := parseRect(*source)
			if err != nil {
				return err
			}
			if err := calls.source(id, r); err != nil {
				return err
			}
		}
		if given["dest"] {
			r, err := parseRect(*dest)
			if err != nil {
				return err
			}
			if err := calls.dest(id, r); err != nil {
				return err
			}
		}
		if given["type"] {
			t, err := layout.ParseSurfaceType(*typ)
			if err != nil {
				return err
			}
			if err := c.SurfaceSetType(id, t); err != nil {
				return err
			}
		}
		if !*noCommit {
			if err := c.Commit(); err != nil {
				return err
			}
		}
		return settle(ctx, c)
	})
}

func runOrder(args []string) int {
	fs := newFlagSet("order", "layerctl order <screen|layer> <id> <child>...", "Replace a render order, bottom first, and commit.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}
	kind, err := layout.ParseKind(fs.Arg(0))
	if err != nil || (kind != layout.KindScreen && kind != layout.KindLayer) {
		fmt.Fprintf(os.Stderr, "order expects screen or layer, got %q\n", fs.Arg(0))
		return 2
	}
	ids, err := parseIDs(fs.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		parent, children := ids[0], ids[1:]
		var err error
		if kind == layout.KindScreen {
			err = c.ScreenSetRenderOrder(parent, children)
		} else {
			err = c.LayerSetRenderOrder(parent, children)
		}
		if err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}

func runLayer(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  layerctl layer create --width W --height H [--id ID] [--screen ID] [--visible]")
		fmt.Fprintln(os.Stderr, "  layerctl layer remove <id>")
		fmt.Fprintln(os.Stderr, "  layerctl layer add <layer> <surface>")
		fmt.Fprintln(os.Stderr, "  layerctl layer detach <layer> <surface>")
		fmt.Fprintln(os.Stderr, "  layerctl layer arrange <id> [--mode grid|vertical|horizontal] [--gap N]")
		return 2
	}

	switch args[0] {
	case "create":
		return runLayerCreate(args[1:])
	case "remove":
		return runLayerRemove(args[1:])
	case "add", "detach":
		return runLayerMembership(args[0], args[1:])
	case "arrange":
		return runLayerArrange(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown layer subcommand: %s\n", args[0])
		return 2
	}
}

func runLayerCreate(args []string) int {
	fs := newFlagSet("layer create", "layerctl layer create --width W --height H [flags]", "Create a layer and commit. Prints the new id.")
	socket := fs.String("socket", "", "Control socket path")
	id := fs.Uint("id", 0, "Layer id (default: assigned by the daemon)")
	width := fs.Int("width", 0, "Layer width")
	height := fs.Int("height", 0, "Layer height")
	screen := fs.Uint("screen", 0, "Screen to place the layer on, full size")
	visible := fs.Bool("visible", false, "Make the layer visible")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *width <= 0 || *height <= 0 {
		fmt.Fprintln(os.Stderr, "--width and --height must be > 0")
		return 2
	}
	given := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { given[f.Name] = true })

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		want := layout.InvalidID
		if given["id"] {
			want = uint32(*id)
		}
		got, err := c.LayerCreateWithDimension(ctx, want, *width, *height)
		if err != nil {
			return err
		}
		if err := c.LayerSetDestRect(got, layout.Rect{Width: *width, Height: *height}); err != nil {
			return err
		}
		if *visible {
			if err := c.LayerSetVisibility(got, true); err != nil {
				return err
			}
		}
		if given["screen"] {
			if err := c.ScreenAddLayer(uint32(*screen), got); err != nil {
				return err
			}
		}
		if err := c.Commit(); err != nil {
			return err
		}
		if err := settle(ctx, c); err != nil {
			return err
		}
		fmt.Println(got)
		return nil
	})
}

func runLayerRemove(args []string) int {
	fs := newFlagSet("layer remove", "layerctl layer remove <id>", "Remove a layer and commit.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		if err := c.LayerRemove(id); err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}

func runLayerMembership(op string, args []string) int {
	fs := newFlagSet("layer "+op, "layerctl layer "+op+" <layer> <surface>", "Add a surface to, or detach it from, a layer and commit.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	ids, err := parseIDs(fs.Args())
	if err != nil || len(ids) != 2 {
		fs.Usage()
		return 2
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		var err error
		if op == "add" {
			err = c.LayerAddSurface(ids[0], ids[1])
		} else {
			err = c.LayerRemoveSurface(ids[0], ids[1])
		}
		if err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}

func runLayerArrange(args []string) int {
	fs := newFlagSet("layer arrange", "layerctl layer arrange <id> [flags]", "Tile the surfaces of a layer and commit.")
	socket := fs.String("socket", "", "Control socket path")
	mode := fs.String("mode", "", "grid, vertical or horizontal (default: arrange.mode)")
	gap := fs.Int("gap", -1, "Gap in pixels (default: arrange.gap)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts := arrange.Options{Mode: cfg.Arrange.Mode, Gap: cfg.Arrange.Gap}
	if *mode != "" {
		opts.Mode = *mode
	}
	if *gap >= 0 {
		opts.Gap = *gap
	}

	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		rects, err := arrange.ArrangeLayer(ctx, c, id, opts)
		if err != nil {
			return err
		}
		if err := settle(ctx, c); err != nil {
			return err
		}
		fmt.Printf("arranged %d surfaces on layer %d\n", len(rects), id)
		return nil
	})
}

func runInput(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  layerctl input seats [--devices keyboard,pointer,touch]")
		fmt.Fprintln(os.Stderr, "  layerctl input accept <surface> <seat>...")
		fmt.Fprintln(os.Stderr, "  layerctl input focus [--devices LIST] [--off] <surface>...")
		fmt.Fprintln(os.Stderr, "  layerctl input focus --show")
		return 2
	}

	switch args[0] {
	case "seats":
		return runInputSeats(args[1:])
	case "accept":
		return runInputAccept(args[1:])
	case "focus":
		return runInputFocus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown input subcommand: %s\n", args[0])
		return 2
	}
}

func runInputSeats(args []string) int {
	fs := newFlagSet("input seats", "layerctl input seats [--devices LIST]", "List seats having any of the given device classes.")
	socket := fs.String("socket", "", "Control socket path")
	devices := fs.String("devices", "all", "Device classes: keyboard, pointer, touch or all")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	mask, err := input.ParseDevice(*devices)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		names, err := c.InputDevices(ctx, mask)
		if err != nil {
			return err
		}
		var rows [][]string
		for _, name := range names {
			caps, err := c.InputDeviceCapabilities(ctx, name)
			if err != nil {
				return err
			}
			rows = append(rows, []string{name, caps.String()})
		}
		printTable([]string{"SEAT", "CAPABILITIES"}, rows)
		return nil
	})
}

func runInputAccept(args []string) int {
	fs := newFlagSet("input accept", "layerctl input accept <surface> [seat]...", "Replace the seats a surface accepts input from. No seats clears the list.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	seats := fs.Args()[1:]
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		if err := c.SetInputAcceptanceOn(ctx, id, seats); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}

func runInputFocus(args []string) int {
	fs := newFlagSet("input focus", "layerctl input focus [flags] <surface>...", "Set or clear input focus on surfaces.")
	socket := fs.String("socket", "", "Control socket path")
	devices := fs.String("devices", "keyboard", "Device classes to focus")
	off := fs.Bool("off", false, "Clear focus instead of setting it")
	show := fs.Bool("show", false, "Print the current focus state")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if *show {
		return withClient(*socket, func(ctx context.Context, c *control.Context) error {
			states, err := c.InputFocus(ctx)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, st := range states {
				rows = append(rows, []string{fmt.Sprint(st.SurfaceID), st.Devices.String()})
			}
			printTable([]string{"SURFACE", "FOCUS"}, rows)
			return nil
		})
	}

	mask, err := input.ParseDevice(*devices)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	ids, err := parseIDs(fs.Args())
	if err != nil || len(ids) == 0 {
		fs.Usage()
		return 2
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		if err := c.SetInputFocus(ids, mask, !*off); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}
