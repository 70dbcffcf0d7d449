package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type PointerEventQuery struct {
	SessionID string `json:"session_id"`
	// Type is one of down, move, up or double_click.
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Path replays a batch of moves before the event itself.
	Path []models.Point `json:"path,omitempty"`
}

type PointerEventResponse struct {
	Tool   string             `json:"tool"`
	State  string             `json:"state"`
	Events []models.EventInfo `json:"events"`
}

func PointerEventTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PointerEventQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "pointer-event",
		Description: "Forward a pointer event in viewport pixels (down, move, up or double_click) to the active tool. Returns the gesture state and any events: created or changed annotations, and requests to show a text, comment, edit or image widget at a screen position.",
		InputSchema: inputschema,
	}
}

func PointerEventToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PointerEventQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *PointerEventResponse, error) {
	log.Debug("pointer-event tool called: %s at (%.1f, %.1f)", query.Type, query.X, query.Y)
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	var events []interaction.Event
	for _, p := range query.Path {
		events = append(events, s.PointerMove(geom.ScreenPoint{X: p.X, Y: p.Y})...)
	}

	p := geom.ScreenPoint{X: query.X, Y: query.Y}
	switch query.Type {
	case "down":
		events = append(events, s.PointerDown(p)...)
	case "move":
		events = append(events, s.PointerMove(p)...)
	case "up":
		events = append(events, s.PointerUp(p)...)
	case "double_click", "dblclick":
		events = append(events, s.DoubleClick(p)...)
	default:
		return nil, nil, fmt.Errorf("unknown pointer event type %q", query.Type)
	}

	st := s.ViewState()
	return nil, &PointerEventResponse{
		Tool:   st.Tool,
		State:  st.State,
		Events: eventInfos(events),
	}, nil
}
