package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
	"github.com/Epistemic-Technology/pdfed/internal/session"
)

type WatermarkSettings struct {
	Remove    bool     `json:"remove,omitempty"`
	Text      string   `json:"text,omitempty"`
	FontSize  *float64 `json:"font_size,omitempty"`
	Opacity   *float64 `json:"opacity,omitempty"`
	Color     string   `json:"color,omitempty"`
	Position  string   `json:"position,omitempty"` // diagonal, center or tile
	PageRange string   `json:"page_range,omitempty"`
}

type BandSettings struct {
	Left   string `json:"left,omitempty"`
	Center string `json:"center,omitempty"`
	Right  string `json:"right,omitempty"`
}

type HeaderFooterSettings struct {
	Remove    bool          `json:"remove,omitempty"`
	Header    *BandSettings `json:"header,omitempty"`
	Footer    *BandSettings `json:"footer,omitempty"`
	FontSize  *float64      `json:"font_size,omitempty"`
	Color     string        `json:"color,omitempty"`
	Margin    *float64      `json:"margin,omitempty"`
	PageRange string        `json:"page_range,omitempty"`
}

type DocumentOverlayQuery struct {
	SessionID    string                `json:"session_id"`
	Watermark    *WatermarkSettings    `json:"watermark,omitempty"`
	HeaderFooter *HeaderFooterSettings `json:"header_footer,omitempty"`
}

type DocumentOverlayResponse struct {
	Watermark    string `json:"watermark,omitempty"`
	HeaderFooter string `json:"header_footer,omitempty"`
}

func DocumentOverlayTool() *mcp.Tool {
	inputschema, err := jsonschema.For[DocumentOverlayQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "document-overlay",
		Description: "Set or remove the document watermark and header/footer bands. They are previewed on the page surfaces and stamped into the document on save. Band text may use {page} and {total}.",
		InputSchema: inputschema,
	}
}

func DocumentOverlayToolHandler(ctx context.Context, req *mcp.CallToolRequest, query DocumentOverlayQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *DocumentOverlayResponse, error) {
	log.Info("document-overlay tool called")
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if query.Watermark == nil && query.HeaderFooter == nil {
		return nil, nil, fmt.Errorf("watermark or header_footer is required")
	}

	resp := &DocumentOverlayResponse{}
	if w := query.Watermark; w != nil {
		if w.Remove {
			s.SetWatermark(nil)
			resp.Watermark = "removed"
		} else {
			wm, err := watermark(w)
			if err != nil {
				return nil, nil, err
			}
			s.SetWatermark(&wm)
			resp.Watermark = fmt.Sprintf("%q %s", wm.Text, wm.Position)
		}
	}
	if h := query.HeaderFooter; h != nil {
		if h.Remove {
			s.SetHeaderFooter(nil)
			resp.HeaderFooter = "removed"
		} else {
			hf, err := headerFooter(h)
			if err != nil {
				return nil, nil, err
			}
			s.SetHeaderFooter(&hf)
			resp.HeaderFooter = fmt.Sprintf("header=%v footer=%v", hf.Header.Enabled, hf.Footer.Enabled)
		}
	}
	return nil, resp, nil
}

func watermark(q *WatermarkSettings) (pdfdoc.Watermark, error) {
	w := pdfdoc.DefaultWatermark()
	if q.Text != "" {
		w.Text = q.Text
	}
	if q.FontSize != nil {
		if *q.FontSize <= 0 {
			return w, fmt.Errorf("watermark font_size must be positive")
		}
		w.FontSize = *q.FontSize
	}
	if q.Opacity != nil {
		if *q.Opacity < 0 || *q.Opacity > 1 {
			return w, fmt.Errorf("watermark opacity must be within [0,1]")
		}
		w.Opacity = *q.Opacity
	}
	if q.Color != "" {
		c, err := parseColor("watermark color", q.Color)
		if err != nil {
			return w, err
		}
		w.Color = c
	}
	switch pos := pdfdoc.WatermarkPosition(q.Position); pos {
	case "":
	case pdfdoc.WatermarkDiagonal, pdfdoc.WatermarkCenter, pdfdoc.WatermarkTile:
		w.Position = pos
	default:
		return w, fmt.Errorf("unknown watermark position %q", q.Position)
	}
	w.PageRange = q.PageRange
	return w, nil
}

func headerFooter(q *HeaderFooterSettings) (pdfdoc.HeaderFooter, error) {
	h := pdfdoc.DefaultHeaderFooter()
	band := func(b *BandSettings) pdfdoc.Band {
		return pdfdoc.Band{Enabled: true, Left: b.Left, Center: b.Center, Right: b.Right}
	}
	if q.Header != nil {
		h.Header = band(q.Header)
	}
	if q.Footer != nil {
		h.Footer = band(q.Footer)
	}
	if q.FontSize != nil {
		if *q.FontSize <= 0 {
			return h, fmt.Errorf("header_footer font_size must be positive")
		}
		h.FontSize = *q.FontSize
	}
	if q.Margin != nil {
		if *q.Margin < 0 {
			return h, fmt.Errorf("header_footer margin must not be negative")
		}
		h.Margin = *q.Margin
	}
	if q.Color != "" {
		c, err := parseColor("header_footer color", q.Color)
		if err != nil {
			return h, err
		}
		h.Color = c
	}
	h.PageRange = q.PageRange
	return h, nil
}
