package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type TextCommitQuery struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text,omitempty"`
	// Cancel closes the input without committing. An annotation being
	// edited is restored unchanged.
	Cancel     bool     `json:"cancel,omitempty"`
	FontSize   *float64 `json:"font_size,omitempty"`
	Color      string   `json:"color,omitempty"`
	Background string   `json:"background,omitempty"`
	Bold       bool     `json:"bold,omitempty"`
	Italic     bool     `json:"italic,omitempty"`
	Underline  bool     `json:"underline,omitempty"`
	Strike     bool     `json:"strike,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
}

type TextCommitResponse struct {
	Annotation *models.AnnotationInfo `json:"annotation,omitempty"`
	Discarded  bool                   `json:"discarded"`
	Events     []models.EventInfo     `json:"events,omitempty"`
}

func TextCommitTool() *mcp.Tool {
	inputschema, err := jsonschema.For[TextCommitQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "text-commit",
		Description: "Complete the open text or comment input requested by a pointer event. Empty text discards the input (deleting an annotation being edited). Style fields apply to text annotations; x and y move the annotation to a new screen position.",
		InputSchema: inputschema,
	}
}

func TextCommitToolHandler(ctx context.Context, req *mcp.CallToolRequest, query TextCommitQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *TextCommitResponse, error) {
	log.Info("text-commit tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if query.Cancel {
		events := s.CancelText()
		return nil, &TextCommitResponse{Discarded: true, Events: eventInfos(events)}, nil
	}

	commit := interaction.TextCommit{Text: query.Text}
	if commit.Position, err = screenPoint(query.X, query.Y); err != nil {
		return nil, nil, err
	}
	if commit.Style, err = textStyle(query, s.Options()); err != nil {
		return nil, nil, err
	}

	a, events, err := s.CommitText(commit)
	if err != nil {
		return nil, nil, err
	}
	return nil, &TextCommitResponse{
		Annotation: annotationInfo(a),
		Discarded:  a == nil,
		Events:     eventInfos(events),
	}, nil
}

// textStyle returns nil when the query carries no styling, so an edited
// annotation keeps its own.
func textStyle(q TextCommitQuery, opts interaction.Options) (*annotation.TextData, error) {
	if q.FontSize == nil && q.Color == "" && q.Background == "" && !q.Bold && !q.Italic && !q.Underline && !q.Strike {
		return nil, nil
	}
	style := &annotation.TextData{
		FontSize:  opts.FontSize,
		Color:     opts.Color,
		Bold:      q.Bold,
		Italic:    q.Italic,
		Underline: q.Underline,
		Strike:    q.Strike,
	}
	if q.FontSize != nil {
		style.FontSize = *q.FontSize
	}
	if q.Color != "" {
		c, err := parseColor("color", q.Color)
		if err != nil {
			return nil, err
		}
		style.Color = c
	}
	if q.Background != "" {
		c, err := parseColor("background", q.Background)
		if err != nil {
			return nil, err
		}
		style.Background = &c
	}
	return style, nil
}
