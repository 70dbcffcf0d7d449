package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

// ViewportUpdateQuery reports changes in the host viewer. Omitted fields
// are left as they are.
type ViewportUpdateQuery struct {
	SessionID     string   `json:"session_id"`
	ScrollX       *float64 `json:"scroll_x,omitempty"`
	ScrollY       *float64 `json:"scroll_y,omitempty"`
	Scale         *float64 `json:"scale,omitempty"`
	Width         *float64 `json:"width,omitempty"`
	Height        *float64 `json:"height,omitempty"`
	DPR           *float64 `json:"device_pixel_ratio,omitempty"`
	RenderedPages *int     `json:"rendered_pages,omitempty"`
	// Flush applies a pending debounced resize immediately.
	Flush bool `json:"flush,omitempty"`
}

type ViewportUpdateResponse struct {
	View models.ViewState `json:"view"`
}

func ViewportUpdateTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ViewportUpdateQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "viewport-update",
		Description: "Report scroll, zoom, viewport size, device pixel ratio or the number of rendered pages of the host viewer. Zooming rescales existing annotations; size changes rebuild surfaces after a short debounce. Returns the resulting view state.",
		InputSchema: inputschema,
	}
}

func ViewportUpdateToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ViewportUpdateQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *ViewportUpdateResponse, error) {
	log.Info("viewport-update tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if query.RenderedPages != nil {
		s.SetRenderedPages(*query.RenderedPages)
	}
	if query.Scale != nil {
		if err := s.Zoom(*query.Scale); err != nil {
			return nil, nil, err
		}
	}
	if query.Width != nil || query.Height != nil || query.DPR != nil {
		view := s.ViewState()
		w, h, dpr := view.ViewportWidth, view.ViewportHeight, 0.0
		if query.Width != nil {
			w = *query.Width
		}
		if query.Height != nil {
			h = *query.Height
		}
		if query.DPR != nil {
			if *query.DPR <= 0 {
				return nil, nil, fmt.Errorf("device_pixel_ratio must be positive, got %v", *query.DPR)
			}
			dpr = *query.DPR
		}
		s.ResizeViewport(w, h, dpr)
	}
	if query.ScrollX != nil || query.ScrollY != nil {
		view := s.ViewState()
		x, y := view.ScrollX, view.ScrollY
		if query.ScrollX != nil {
			x = *query.ScrollX
		}
		if query.ScrollY != nil {
			y = *query.ScrollY
		}
		s.Scroll(x, y)
	}
	if query.Flush {
		s.FlushResize()
	}
	return nil, &ViewportUpdateResponse{View: s.ViewState()}, nil
}
