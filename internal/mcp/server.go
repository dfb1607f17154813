// Package mcp exposes the scene of a running daemon as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/layerctl/internal/arrange"
	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/layout"
)

const (
	ServerName    = "layerctl"
	ServerVersion = "0.1.0"
)

// Client is the part of a control context the tools use.
type Client interface {
	arrange.LayerClient

	Sync(ctx context.Context) error
	Errors() <-chan control.ProtocolError
	Scene(ctx context.Context) (control.SceneState, error)
	Surface(ctx context.Context, id uint32) (control.Surface, error)

	SurfaceSetVisibility(id uint32, visible bool) error
	SurfaceSetOpacity(id uint32, opacity float64) error
	SurfaceSetSourceRect(id uint32, r layout.Rect) error
	LayerCreateWithDimension(ctx context.Context, id uint32, width, height int) (uint32, error)
	LayerRemove(id uint32) error
	LayerSetVisibility(id uint32, visible bool) error
	LayerSetOpacity(id uint32, opacity float64) error
	LayerSetSourceRect(id uint32, r layout.Rect) error
	LayerSetDestRect(id uint32, r layout.Rect) error
	LayerSetRenderOrder(layerID uint32, surfaces []uint32) error
	ScreenSetRenderOrder(screenID uint32, layers []uint32) error
	ScreenAddLayer(screenID, layerID uint32) error
}

var _ Client = (*control.Context)(nil)

// Config configures a Server.
type Config struct {
	Client  Client
	Arrange config.ArrangeConfig
	Logger  *slog.Logger
}

// Server is the MCP server for scene control.
type Server struct {
	mcpServer *mcpsdk.Server
	client    Client
	arrange   config.ArrangeConfig
	log       *slog.Logger
}

// NewServer creates a server whose tools act through cfg.Client.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		client:  cfg.Client,
		arrange: cfg.Arrange,
		log:     logger,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP on stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_scene",
		Description: "List every screen, layer, surface and seat of the running scene with their committed properties and render orders (bottom to top).",
	}, s.handleListScene)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_surface",
		Description: "Get the committed properties of one surface, including its layer, input focus and accepted seats.",
	}, s.handleGetSurface)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_layer",
		Description: "Get the committed properties of one layer, its screen and its surfaces from bottom to top.",
	}, s.handleGetLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_screen",
		Description: "Get a screen's connector name, resolution and layers from bottom to top.",
	}, s.handleGetScreen)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_surface",
		Description: "Change surface visibility, opacity, source or destination rectangle. Changes become visible on the next commit.",
	}, s.handleSetSurface)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_layer",
		Description: "Change layer visibility, opacity, source or destination rectangle. Changes become visible on the next commit.",
	}, s.handleSetLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "create_layer",
		Description: "Create a layer with the given size. Optionally put it on top of a screen, make it visible and commit.",
	}, s.handleCreateLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_layer",
		Description: "Remove a layer. Its surfaces stay alive but leave the layer.",
	}, s.handleRemoveLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_render_order",
		Description: "Replace the render order of a screen (layers) or a layer (surfaces). The last id is drawn on top.",
	}, s.handleSetRenderOrder)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "commit",
		Description: "Commit pending changes so they are shown and notified.",
	}, s.handleCommit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "arrange_layer",
		Description: "Tile the surfaces of a layer in a grid, vertical or horizontal stack and commit.",
	}, s.handleArrangeLayer)
}
