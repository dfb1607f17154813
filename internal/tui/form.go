package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// layerForm holds the values of the create-layer form.
type layerForm struct {
	id      string
	width   string
	height  string
	screen  string
	visible bool
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func optionalID(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32); err != nil {
		return fmt.Errorf("must be empty or an id")
	}
	return nil
}

// newLayerForm builds the form, pre-filled with the size of the first screen.
func newLayerForm(f *layerForm, screens []control.Screen, width int) *huh.Form {
	opts := []huh.Option[string]{huh.NewOption("none", "")}
	for _, s := range screens {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%d %s", s.ID, s.ConnectorName), fmt.Sprint(s.ID)))
	}
	if len(screens) > 0 {
		f.width = fmt.Sprint(screens[0].Width)
		f.height = fmt.Sprint(screens[0].Height)
		f.screen = fmt.Sprint(screens[0].ID)
	}
	f.visible = true

	w := width - 4
	if w < 40 {
		w = 40
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("id").
				Title("Layer ID").
				Description("Leave empty to pick the next free id").
				Validate(optionalID).
				Value(&f.id),
			huh.NewInput().
				Key("width").
				Title("Width").
				Validate(positiveInt).
				Value(&f.width),
			huh.NewInput().
				Key("height").
				Title("Height").
				Validate(positiveInt).
				Value(&f.height),
			huh.NewSelect[string]().
				Key("screen").
				Title("Screen").
				Description("Screen to put the layer on top of").
				Options(opts...).
				Value(&f.screen),
			huh.NewConfirm().
				Key("visible").
				Title("Visible").
				Value(&f.visible),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)
}

// action creates the layer described by the form and commits.
func (f *layerForm) action(ctx context.Context) action {
	return func(c Client) error {
		id := layout.InvalidID
		if s := strings.TrimSpace(f.id); s != "" {
			v, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return err
			}
			id = uint32(v)
		}
		width, _ := strconv.Atoi(strings.TrimSpace(f.width))
		height, _ := strconv.Atoi(strings.TrimSpace(f.height))

		id, err := c.LayerCreateWithDimension(ctx, id, width, height)
		if err != nil {
			return err
		}
		if err := c.LayerSetDestRect(id, layout.Rect{Width: width, Height: height}); err != nil {
			return err
		}
		if f.visible {
			if err := c.LayerSetVisibility(id, true); err != nil {
				return err
			}
		}
		if f.screen != "" {
			screen, err := strconv.ParseUint(f.screen, 10, 32)
			if err != nil {
				return err
			}
			if err := c.ScreenAddLayer(uint32(screen), id); err != nil {
				return err
			}
		}
		return nil
	}
}
