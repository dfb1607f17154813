package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/layerctl/internal/input"
	"github.com/1broseidon/layerctl/internal/layout"
)

// CommandType represents different IPC command types
type CommandType string

// One-shot management commands.
const (
	CommandReload    CommandType = "RELOAD"
	CommandGetStatus CommandType = "GET_STATUS"
	// CommandBind turns the connection into a control session.
	CommandBind CommandType = "BIND"
)

// Control session commands. None of them is answered except SYNC.
const (
	CommandSync   CommandType = "SYNC"
	CommandCommit CommandType = "COMMIT"

	CommandSurfaceCreate        CommandType = "SURFACE_CREATE"
	CommandSurfaceRemove        CommandType = "SURFACE_REMOVE"
	CommandSurfaceSetVisibility CommandType = "SURFACE_SET_VISIBILITY"
	CommandSurfaceSetOpacity    CommandType = "SURFACE_SET_OPACITY"
	CommandSurfaceSetSourceRect CommandType = "SURFACE_SET_SOURCE_RECT"
	CommandSurfaceSetDestRect   CommandType = "SURFACE_SET_DEST_RECT"
	CommandSurfaceSetType       CommandType = "SURFACE_SET_TYPE"

	CommandLayerCreate         CommandType = "LAYER_CREATE"
	CommandLayerRemove         CommandType = "LAYER_REMOVE"
	CommandLayerSetVisibility  CommandType = "LAYER_SET_VISIBILITY"
	CommandLayerSetOpacity     CommandType = "LAYER_SET_OPACITY"
	CommandLayerSetSourceRect  CommandType = "LAYER_SET_SOURCE_RECT"
	CommandLayerSetDestRect    CommandType = "LAYER_SET_DEST_RECT"
	CommandLayerSetRenderOrder CommandType = "LAYER_SET_RENDER_ORDER"
	CommandLayerAddSurface     CommandType = "LAYER_ADD_SURFACE"
	CommandLayerRemoveSurface  CommandType = "LAYER_REMOVE_SURFACE"

	CommandScreenSetRenderOrder CommandType = "SCREEN_SET_RENDER_ORDER"
	CommandScreenAddLayer       CommandType = "SCREEN_ADD_LAYER"
	CommandScreenRemoveLayer    CommandType = "SCREEN_REMOVE_LAYER"

	CommandInputSetAcceptance CommandType = "INPUT_SET_ACCEPTANCE"
	CommandInputSetFocus      CommandType = "INPUT_SET_FOCUS"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Serial  uint32          `json:"serial,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents the answer to a one-shot request or to BIND
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Backend       string `json:"backend"`
	Screens       int    `json:"screens"`
	Layers        int    `json:"layers"`
	Surfaces      int    `json:"surfaces"`
	Seats         int    `json:"seats"`
	Sessions      int    `json:"sessions"`
	Commits       uint64 `json:"commits"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DaemonRunning bool   `json:"daemon_running"`
}

// BindData is returned in the BIND response.
type BindData struct {
	SessionID uint64 `json:"session_id"`
}

// EventType names a server-to-client session message.
type EventType string

const (
	EventDone  EventType = "DONE"
	EventError EventType = "ERROR"

	EventScreenCreated    EventType = "SCREEN_CREATED"
	EventScreenDestroyed  EventType = "SCREEN_DESTROYED"
	EventScreenProperties EventType = "SCREEN_PROPERTIES"

	EventLayerCreated    EventType = "LAYER_CREATED"
	EventLayerDestroyed  EventType = "LAYER_DESTROYED"
	EventLayerProperties EventType = "LAYER_PROPERTIES"

	EventSurfaceCreated    EventType = "SURFACE_CREATED"
	EventSurfaceDestroyed  EventType = "SURFACE_DESTROYED"
	EventSurfaceProperties EventType = "SURFACE_PROPERTIES"

	EventRenderOrder EventType = "RENDER_ORDER"

	EventSeatCreated      EventType = "SEAT_CREATED"
	EventSeatCapabilities EventType = "SEAT_CAPABILITIES"
	EventSeatDestroyed    EventType = "SEAT_DESTROYED"

	EventInputAcceptance EventType = "INPUT_ACCEPTANCE"
	EventInputFocus      EventType = "INPUT_FOCUS"
)

// Event is one server-to-client message on a control session.
type Event struct {
	Type    EventType       `json:"type"`
	Serial  uint32          `json:"serial,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorCode classifies a rejected session request.
type ErrorCode string

const (
	ErrorNoSuchObject ErrorCode = "no_such_object"
	ErrorBadParam     ErrorCode = "bad_param"
	ErrorNotSupported ErrorCode = "not_supported"
	ErrorDuplicateID  ErrorCode = "duplicate_id"
)

// ObjectPayload addresses a single object.
type ObjectPayload struct {
	ID uint32 `json:"id"`
}

// CreatePayload creates a surface or layer. InvalidID asks the server to
// assign an id.
type CreatePayload struct {
	ID     uint32 `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type VisibilityPayload struct {
	ID      uint32 `json:"id"`
	Visible bool   `json:"visible"`
}

type OpacityPayload struct {
	ID      uint32  `json:"id"`
	Opacity float64 `json:"opacity"`
}

type RectPayload struct {
	ID   uint32      `json:"id"`
	Rect layout.Rect `json:"rect"`
}

type SurfaceTypePayload struct {
	ID   uint32 `json:"id"`
	Type string `json:"type"`
}

// RenderOrderPayload carries a full render order. Kind is only set on events.
type RenderOrderPayload struct {
	Kind     layout.Kind `json:"kind"`
	Parent   uint32      `json:"parent"`
	Children []uint32    `json:"children"`
}

// MembershipPayload adds or removes one child of a parent.
type MembershipPayload struct {
	Parent uint32 `json:"parent"`
	Child  uint32 `json:"child"`
}

type AcceptancePayload struct {
	SurfaceID uint32 `json:"surface_id"`
	Seat      string `json:"seat"`
	Accepted  bool   `json:"accepted"`
}

type FocusPayload struct {
	SurfaceID uint32       `json:"surface_id"`
	Devices   input.Device `json:"devices"`
	Enabled   bool         `json:"enabled"`
}

type ScreenPayload struct {
	ID         uint32                  `json:"id"`
	Properties layout.ScreenProperties `json:"properties"`
}

type LayerPayload struct {
	ID         uint32                 `json:"id"`
	Properties layout.LayerProperties `json:"properties"`
	Mask       layout.Mask            `json:"mask,omitempty"`
}

type SurfacePayload struct {
	ID         uint32                   `json:"id"`
	Properties layout.SurfaceProperties `json:"properties"`
	Mask       layout.Mask              `json:"mask,omitempty"`
}

type SeatPayload struct {
	Name         string       `json:"name"`
	Capabilities input.Device `json:"capabilities"`
}

type ErrorPayload struct {
	ObjectKind layout.Kind `json:"object_kind"`
	ObjectID   uint32      `json:"object_id"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// NewRequest builds a request with a JSON payload.
func NewRequest(cmd CommandType, payload interface{}) (*Request, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}
	return req, nil
}

// NewEvent builds an event with a JSON payload.
func NewEvent(typ EventType, payload interface{}) (*Event, error) {
	ev := &Event{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// ParseEvent parses an event from JSON bytes
func ParseEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return &ev, nil
}

// Decode unmarshals the request payload into v.
func (r *Request) Decode(v interface{}) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", r.Command)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", r.Command, err)
	}
	return nil
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", e.Type, err)
	}
	return nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
