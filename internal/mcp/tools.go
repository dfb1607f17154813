package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/layerctl/internal/arrange"
	"github.com/1broseidon/layerctl/internal/layout"
)

func (s *Server) handleListScene(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListSceneInput) (*mcpsdk.CallToolResult, ListSceneOutput, error) {
	scene, err := s.client.Scene(ctx)
	if err != nil {
		return nil, ListSceneOutput{}, err
	}
	return nil, ListSceneOutput{Scene: scene}, nil
}

func (s *Server) handleGetSurface(ctx context.Context, _ *mcpsdk.CallToolRequest, args GetObjectInput) (*mcpsdk.CallToolResult, GetSurfaceOutput, error) {
	surf, err := s.client.Surface(ctx, args.ID)
	if err != nil {
		return nil, GetSurfaceOutput{}, err
	}
	return nil, GetSurfaceOutput{Surface: surf}, nil
}

func (s *Server) handleGetLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args GetObjectInput) (*mcpsdk.CallToolResult, GetLayerOutput, error) {
	l, err := s.client.Layer(ctx, args.ID)
	if err != nil {
		return nil, GetLayerOutput{}, err
	}
	return nil, GetLayerOutput{Layer: l}, nil
}

func (s *Server) handleGetScreen(ctx context.Context, _ *mcpsdk.CallToolRequest, args GetObjectInput) (*mcpsdk.CallToolResult, GetScreenOutput, error) {
	scr, err := s.client.Screen(ctx, args.ID)
	if err != nil {
		return nil, GetScreenOutput{}, err
	}
	return nil, GetScreenOutput{Screen: scr}, nil
}

// propertySetters lets set_surface and set_layer share one handler body.
type propertySetters struct {
	visible func(uint32, bool) error
	opacity func(uint32, float64) error
	source  func(uint32, layout.Rect) error
	dest    func(uint32, layout.Rect) error
}

func (s *Server) setProperties(ctx context.Context, set propertySetters, args SetPropertiesInput) (MutationOutput, error) {
	var errs []error
	if args.Visible != nil {
		errs = append(errs, set.visible(args.ID, *args.Visible))
	}
	if args.Opacity != nil {
		errs = append(errs, set.opacity(args.ID, *args.Opacity))
	}
	if args.Source != nil {
		errs = append(errs, set.source(args.ID, *args.Source))
	}
	if args.Dest != nil {
		errs = append(errs, set.dest(args.ID, *args.Dest))
	}
	if err := errors.Join(errs...); err != nil {
		return MutationOutput{}, err
	}
	return s.settle(ctx, args.Commit)
}

func (s *Server) handleSetSurface(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetPropertiesInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	out, err := s.setProperties(ctx, propertySetters{
		visible: s.client.SurfaceSetVisibility,
		opacity: s.client.SurfaceSetOpacity,
		source:  s.client.SurfaceSetSourceRect,
		dest:    s.client.SurfaceSetDestRect,
	}, args)
	return nil, out, err
}

func (s *Server) handleSetLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetPropertiesInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	out, err := s.setProperties(ctx, propertySetters{
		visible: s.client.LayerSetVisibility,
		opacity: s.client.LayerSetOpacity,
		source:  s.client.LayerSetSourceRect,
		dest:    s.client.LayerSetDestRect,
	}, args)
	return nil, out, err
}

func (s *Server) handleCreateLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args CreateLayerInput) (*mcpsdk.CallToolResult, CreateLayerOutput, error) {
	want := layout.InvalidID
	if args.ID != nil {
		want = *args.ID
	}
	id, err := s.client.LayerCreateWithDimension(ctx, want, args.Width, args.Height)
	if err != nil {
		return nil, CreateLayerOutput{}, err
	}
	s.log.Info("layer created", "layer_id", id)

	var errs []error
	if args.Screen != nil {
		errs = append(errs,
			s.client.LayerSetDestRect(id, layout.Rect{Width: args.Width, Height: args.Height}),
			s.client.ScreenAddLayer(*args.Screen, id),
		)
	}
	if args.Visible {
		errs = append(errs, s.client.LayerSetVisibility(id, true))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, CreateLayerOutput{ID: id}, err
	}
	out, err := s.settle(ctx, args.Commit)
	return nil, CreateLayerOutput{ID: id, Errors: out.Errors}, err
}

func (s *Server) handleRemoveLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args RemoveLayerInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	if err := s.client.LayerRemove(args.ID); err != nil {
		return nil, MutationOutput{}, err
	}
	out, err := s.settle(ctx, args.Commit)
	return nil, out, err
}

func (s *Server) handleSetRenderOrder(ctx context.Context, _ *mcpsdk.CallToolRequest, args SetRenderOrderInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	kind, err := layout.ParseKind(args.Kind)
	if err != nil {
		return nil, MutationOutput{}, err
	}
	switch kind {
	case layout.KindScreen:
		err = s.client.ScreenSetRenderOrder(args.ID, args.Children)
	case layout.KindLayer:
		err = s.client.LayerSetRenderOrder(args.ID, args.Children)
	default:
		err = fmt.Errorf("%s has no render order", kind)
	}
	if err != nil {
		return nil, MutationOutput{}, err
	}
	out, err := s.settle(ctx, args.Commit)
	return nil, out, err
}

func (s *Server) handleCommit(ctx context.Context, _ *mcpsdk.CallToolRequest, _ CommitInput) (*mcpsdk.CallToolResult, MutationOutput, error) {
	out, err := s.settle(ctx, true)
	return nil, out, err
}

func (s *Server) handleArrangeLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args ArrangeLayerInput) (*mcpsdk.CallToolResult, ArrangeLayerOutput, error) {
	opts := arrange.Options{Mode: s.arrange.Mode, Gap: s.arrange.Gap, FlexibleLastRow: true}
	if args.Mode != "" {
		opts.Mode = args.Mode
	}
	if args.Gap != nil {
		opts.Gap = *args.Gap
	}
	rects, err := arrange.ArrangeLayer(ctx, s.client, args.ID, opts)
	if err != nil {
		return nil, ArrangeLayerOutput{}, err
	}
	out, err := s.settle(ctx, false)
	return nil, ArrangeLayerOutput{Rects: rects, Errors: out.Errors}, err
}

// settle optionally commits, then waits for the daemon to process everything
// sent so far and collects the protocol errors it reported.
func (s *Server) settle(ctx context.Context, commit bool) (MutationOutput, error) {
	out := MutationOutput{Committed: commit}
	if commit {
		if err := s.client.Commit(); err != nil {
			return MutationOutput{}, err
		}
	}
	if err := s.client.Sync(ctx); err != nil {
		return MutationOutput{}, err
	}
	for {
		select {
		case perr := <-s.client.Errors():
			out.Errors = append(out.Errors, perr.Error())
		default:
			return out, nil
		}
	}
}
