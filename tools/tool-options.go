package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
)

// ToolOptionsQuery updates the defaults applied to new annotations. Omitted
// fields keep their current value.
type ToolOptionsQuery struct {
	SessionID      string   `json:"session_id"`
	Color          *string  `json:"color,omitempty"`           // "#rrggbb" for text, ink and shapes
	HighlightColor *string  `json:"highlight_color,omitempty"` // "#rrggbb"
	Opacity        *float64 `json:"opacity,omitempty"`         // 0..1, highlights
	StrokeWidth    *float64 `json:"stroke_width,omitempty"`
	FontSize       *float64 `json:"font_size,omitempty"`
	RedactFill     *string  `json:"redact_fill,omitempty"`    // "#rrggbb"
	RedactPattern  *string  `json:"redact_pattern,omitempty"` // solid, striped or crosshatch
}

type ToolOptionsResponse struct {
	Color          string  `json:"color"`
	HighlightColor string  `json:"highlight_color"`
	Opacity        float64 `json:"opacity"`
	StrokeWidth    float64 `json:"stroke_width"`
	FontSize       float64 `json:"font_size"`
	RedactFill     string  `json:"redact_fill"`
	RedactPattern  string  `json:"redact_pattern"`
}

func ToolOptionsTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ToolOptionsQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "tool-options",
		Description: "Read or change the defaults used for new annotations: colors, highlight opacity, stroke width, font size and redaction fill and pattern. Existing annotations are not changed.",
		InputSchema: inputschema,
	}
}

func ToolOptionsToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ToolOptionsQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *ToolOptionsResponse, error) {
	log.Info("tool-options tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}

	opts, err := applyToolOptions(s.Options(), query)
	if err != nil {
		return nil, nil, err
	}
	s.SetOptions(opts)
	opts = s.Options()

	return nil, &ToolOptionsResponse{
		Color:          opts.Color.Hex(),
		HighlightColor: opts.HighlightColor.Hex(),
		Opacity:        opts.Opacity,
		StrokeWidth:    opts.StrokeWidth,
		FontSize:       opts.FontSize,
		RedactFill:     opts.RedactFill.Hex(),
		RedactPattern:  string(opts.RedactPattern),
	}, nil
}

func applyToolOptions(opts interaction.Options, q ToolOptionsQuery) (interaction.Options, error) {
	for _, c := range []struct {
		field string
		src   *string
		dst   *annotation.Color
	}{
		{"color", q.Color, &opts.Color},
		{"highlight_color", q.HighlightColor, &opts.HighlightColor},
		{"redact_fill", q.RedactFill, &opts.RedactFill},
	} {
		if c.src == nil {
			continue
		}
		col, err := parseColor(c.field, *c.src)
		if err != nil {
			return opts, err
		}
		*c.dst = col
	}

	if q.Opacity != nil {
		if *q.Opacity < 0 || *q.Opacity > 1 {
			return opts, fmt.Errorf("opacity must be within [0,1], got %v", *q.Opacity)
		}
		opts.Opacity = *q.Opacity
	}
	for _, f := range []struct {
		field string
		src   *float64
		dst   *float64
	}{
		{"stroke_width", q.StrokeWidth, &opts.StrokeWidth},
		{"font_size", q.FontSize, &opts.FontSize},
	} {
		if f.src == nil {
			continue
		}
		if *f.src <= 0 {
			return opts, fmt.Errorf("%s must be positive, got %v", f.field, *f.src)
		}
		*f.dst = *f.src
	}
	if q.RedactPattern != nil {
		p := annotation.ParseRedactPattern(*q.RedactPattern)
		if string(p) != strings.ToLower(*q.RedactPattern) {
			return opts, fmt.Errorf("unknown redact pattern %q", *q.RedactPattern)
		}
		opts.RedactPattern = p
	}
	return opts, nil
}
