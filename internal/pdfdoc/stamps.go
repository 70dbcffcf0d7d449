package pdfdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// WatermarkDescriptor renders w as a pdfcpu stamp description for the given
// stamp position and rotation.
func WatermarkDescriptor(w Watermark, position string, rotation int) string {
	return fmt.Sprintf(
		"fontname:Helvetica, points:%.0f, fillcolor:%s, opacity:%.2f, rotation:%d, position:%s, scalefactor:1 abs",
		w.FontSize, w.Color.Hex(), alpha(w.Opacity), rotation, position,
	)
}

// tilePositions covers a page with a 3×3 grid of stamps.
var tilePositions = []string{"tl", "tc", "tr", "l", "c", "r", "bl", "bc", "br"}

func stampWatermark(path string, w Watermark) error {
	type stamp struct {
		position string
		rotation int
	}
	var stamps []stamp
	switch w.Position {
	case WatermarkCenter:
		stamps = []stamp{{"c", 0}}
	case WatermarkTile:
		for _, p := range tilePositions {
			stamps = append(stamps, stamp{p, 45})
		}
	default:
		stamps = []stamp{{"c", 45}}
	}
	for _, s := range stamps {
		desc := WatermarkDescriptor(w, s.position, s.rotation)
		if err := api.AddTextWatermarksFile(path, "", w.Pages(), true, w.Text, desc, newConf()); err != nil {
			return fmt.Errorf("stamping watermark: %w", err)
		}
	}
	return nil
}

// stampText translates {page} and {total} into pdfcpu's %p and %P.
func stampText(s string) string {
	return strings.NewReplacer("{page}", "%p", "{total}", "%P").Replace(s)
}

type bandSlot struct {
	position string
	text     string
	dx, dy   float64
}

func bandSlots(b Band, top bool, margin float64) []bandSlot {
	if !b.Enabled {
		return nil
	}
	row, dy := "b", margin
	if top {
		row, dy = "t", -margin
	}
	candidates := []bandSlot{
		{position: row + "l", text: b.Left, dx: margin, dy: dy},
		{position: row + "c", text: b.Center, dy: dy},
		{position: row + "r", text: b.Right, dx: -margin, dy: dy},
	}
	return slices.DeleteFunc(candidates, func(s bandSlot) bool { return strings.TrimSpace(s.text) == "" })
}

func stampHeaderFooter(path string, h HeaderFooter) error {
	slots := append(bandSlots(h.Header, true, h.Margin), bandSlots(h.Footer, false, h.Margin)...)
	for _, s := range slots {
		desc := fmt.Sprintf(
			"fontname:Helvetica, points:%.0f, fillcolor:%s, rotation:0, position:%s, offset:%.0f %.0f, scalefactor:1 abs",
			h.FontSize, h.Color.Hex(), s.position, s.dx, s.dy,
		)
		if err := api.AddTextWatermarksFile(path, "", h.Pages(), true, stampText(s.text), desc, newConf()); err != nil {
			return fmt.Errorf("stamping %s header/footer: %w", s.position, err)
		}
	}
	return nil
}

type formTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type form struct {
	TextFields []formTextField `json:"textfield"`
}

type formGroup struct {
	Forms []form `json:"forms"`
}

// fillForm writes values in pdfcpu's form JSON layout and fills the file in
// place.
func fillForm(dir, path string, values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	var f form
	for _, name := range names {
		f.TextFields = append(f.TextFields, formTextField{Name: name, Value: values[name]})
	}
	data, err := json.Marshal(formGroup{Forms: []form{f}})
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(dir, "form.json")
	if err := os.WriteFile(jsonPath, data, 0o600); err != nil {
		return err
	}
	filled := filepath.Join(dir, "filled.pdf")
	if err := api.FillFormFile(path, jsonPath, filled, newConf()); err != nil {
		return fmt.Errorf("filling form: %w", err)
	}
	return os.Rename(filled, path)
}
