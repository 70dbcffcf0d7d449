package interaction

import (
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
)

var (
	ErrUnknownTool = errors.New("interaction: unknown tool")
	ErrNoInput     = errors.New("interaction: no text input is open")
)

// Tool is the active toolbar mode.
type Tool string

const (
	ToolSelect        Tool = "select"
	ToolText          Tool = "text"
	ToolHighlight     Tool = "highlight"
	ToolUnderline     Tool = "underline"
	ToolStrikethrough Tool = "strikethrough"
	ToolDraw          Tool = "draw"
	ToolShapes        Tool = "shapes"
	ToolRedact        Tool = "redact"
	ToolComment       Tool = "comment"
	ToolImage         Tool = "image"
)

var tools = []Tool{
	ToolSelect, ToolText, ToolHighlight, ToolUnderline, ToolStrikethrough,
	ToolDraw, ToolShapes, ToolRedact, ToolComment, ToolImage,
}

// Tools lists every tool in toolbar order.
func Tools() []Tool { return append([]Tool(nil), tools...) }

func ParseTool(s string) (Tool, error) {
	for _, t := range tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownTool)
}

// State is the gesture state of the machine.
type State int

const (
	StateIdle State = iota
	StateDrawingNew
	StateDragging
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateDrawingNew:
		return "drawing"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	}
	return "idle"
}

// Handle names a corner resize handle of the selection box.
type Handle string

const (
	HandleNone        Handle = ""
	HandleTopLeft     Handle = "tl"
	HandleTopRight    Handle = "tr"
	HandleBottomLeft  Handle = "bl"
	HandleBottomRight Handle = "br"
)

// Options are the tool defaults and gesture thresholds, in page pixels.
type Options struct {
	Color          annotation.Color
	HighlightColor annotation.Color
	Opacity        float64
	StrokeWidth    float64
	FontSize       float64
	RedactFill     annotation.Color
	RedactPattern  annotation.RedactPattern

	HitTolerance    float64
	HandleTolerance float64
	HandlePadding   float64
	MinGesture      float64
	MinResize       float64
	MaxImageSize    float64
	CommentIconSize float64
}

func DefaultOptions() Options {
	return Options{
		Color:           annotation.Black,
		HighlightColor:  annotation.Yellow,
		Opacity:         0.5,
		StrokeWidth:     2,
		FontSize:        16,
		RedactFill:      annotation.Black,
		RedactPattern:   annotation.RedactSolid,
		HitTolerance:    5,
		HandleTolerance: 8,
		HandlePadding:   6,
		MinGesture:      2,
		MinResize:       10,
		MaxImageSize:    300,
		CommentIconSize: 32,
	}
}

// withDefaults fills zero thresholds from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	fill := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&o.StrokeWidth, def.StrokeWidth)
	fill(&o.FontSize, def.FontSize)
	fill(&o.HandleTolerance, def.HandleTolerance)
	fill(&o.HandlePadding, def.HandlePadding)
	fill(&o.MinGesture, def.MinGesture)
	fill(&o.MinResize, def.MinResize)
	fill(&o.MaxImageSize, def.MaxImageSize)
	fill(&o.CommentIconSize, def.CommentIconSize)
	if o.Opacity <= 0 || o.Opacity > 1 {
		o.Opacity = def.Opacity
	}
	if o.RedactPattern == "" {
		o.RedactPattern = def.RedactPattern
	}
	return o
}
