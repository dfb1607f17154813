package mcp

import (
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

// ListSceneInput is the input for the list_scene tool.
type ListSceneInput struct{}

// ListSceneOutput is the output for the list_scene tool.
type ListSceneOutput struct {
	Scene control.SceneState `json:"scene"`
}

// GetObjectInput is the input for the get_surface, get_layer and get_screen
// tools.
type GetObjectInput struct {
	ID uint32 `json:"id" jsonschema:"Object id"`
}

// GetSurfaceOutput is the output for the get_surface tool.
type GetSurfaceOutput struct {
	Surface control.Surface `json:"surface"`
}

// GetLayerOutput is the output for the get_layer tool.
type GetLayerOutput struct {
	Layer control.Layer `json:"layer"`
}

// GetScreenOutput is the output for the get_screen tool.
type GetScreenOutput struct {
	Screen control.Screen `json:"screen"`
}

// SetPropertiesInput is the input for the set_surface and set_layer tools.
// Only the fields that are present are changed.
type SetPropertiesInput struct {
	ID      uint32       `json:"id" jsonschema:"Object id"`
	Visible *bool        `json:"visible,omitempty" jsonschema:"Visibility"`
	Opacity *float64     `json:"opacity,omitempty" jsonschema:"Opacity between 0 and 1"`
	Source  *layout.Rect `json:"source,omitempty" jsonschema:"Source rectangle"`
	Dest    *layout.Rect `json:"dest,omitempty" jsonschema:"Destination rectangle; surface destinations are relative to their layer"`
	Commit  bool         `json:"commit,omitempty" jsonschema:"Commit after applying the changes"`
}

// CreateLayerInput is the input for the create_layer tool.
type CreateLayerInput struct {
	ID      *uint32 `json:"id,omitempty" jsonschema:"Layer id; omitted picks the next free id"`
	Width   int     `json:"width" jsonschema:"Layer width in pixels"`
	Height  int     `json:"height" jsonschema:"Layer height in pixels"`
	Screen  *uint32 `json:"screen,omitempty" jsonschema:"Screen to put the layer on top of; the layer covers it from the origin"`
	Visible bool    `json:"visible,omitempty" jsonschema:"Make the layer visible"`
	Commit  bool    `json:"commit,omitempty" jsonschema:"Commit after creating"`
}

// CreateLayerOutput is the output for the create_layer tool.
type CreateLayerOutput struct {
	ID     uint32   `json:"id"`
	Errors []string `json:"errors,omitempty"`
}

// RemoveLayerInput is the input for the remove_layer tool.
type RemoveLayerInput struct {
	ID     uint32 `json:"id" jsonschema:"Layer id"`
	Commit bool   `json:"commit,omitempty" jsonschema:"Commit after removing"`
}

// SetRenderOrderInput is the input for the set_render_order tool.
type SetRenderOrderInput struct {
	Kind     string   `json:"kind" jsonschema:"Parent kind: screen or layer"`
	ID       uint32   `json:"id" jsonschema:"Parent id"`
	Children []uint32 `json:"children" jsonschema:"Child ids from bottom to top"`
	Commit   bool     `json:"commit,omitempty" jsonschema:"Commit after reordering"`
}

// CommitInput is the input for the commit tool.
type CommitInput struct{}

// ArrangeLayerInput is the input for the arrange_layer tool.
type ArrangeLayerInput struct {
	ID   uint32 `json:"id" jsonschema:"Layer id"`
	Mode string `json:"mode,omitempty" jsonschema:"grid, vertical or horizontal (default from config)"`
	Gap  *int   `json:"gap,omitempty" jsonschema:"Gap in pixels (default from config)"`
}

// ArrangeLayerOutput is the output for the arrange_layer tool.
type ArrangeLayerOutput struct {
	Rects  []layout.Rect `json:"rects"`
	Errors []string      `json:"errors,omitempty"`
}

// MutationOutput reports the outcome of a one-way request. Errors lists
// protocol errors the daemon returned before the request settled.
type MutationOutput struct {
	Committed bool     `json:"committed"`
	Errors    []string `json:"errors,omitempty"`
}
