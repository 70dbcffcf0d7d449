package tools

import (
	"fmt"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/render"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

func rectInfo(r geom.Rect) models.Rect {
	return models.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func annotationInfo(a *annotation.Annotation) *models.AnnotationInfo {
	if a == nil {
		return nil
	}
	info := &models.AnnotationInfo{
		ID:      string(a.ID),
		Type:    string(a.Type()),
		PageNum: a.PageNum,
		Bounds:  rectInfo(a.Bounds),
		Data:    a.Data,
	}
	// Image bytes are large and the host already has them.
	if img, ok := a.Data.(*annotation.ImageData); ok {
		info.Data = map[string]any{"kind": img.Kind, "size_bytes": len(img.Bytes)}
	}
	return info
}

func annotationInfos(as []*annotation.Annotation) []models.AnnotationInfo {
	out := make([]models.AnnotationInfo, 0, len(as))
	for _, a := range as {
		out = append(out, *annotationInfo(a))
	}
	return out
}

func eventInfos(events []interaction.Event) []models.EventInfo {
	out := make([]models.EventInfo, 0, len(events))
	for _, e := range events {
		out = append(out, models.EventInfo{
			Kind:       string(e.Kind),
			PageNum:    e.PageNum,
			X:          e.At.X,
			Y:          e.At.Y,
			ScreenX:    e.Screen.X,
			ScreenY:    e.Screen.Y,
			Annotation: annotationInfo(e.Annotation),
		})
	}
	return out
}

func failureInfos(report render.ReplayReport) []models.ReplayFailure {
	var out []models.ReplayFailure
	for _, f := range report.Failed {
		out = append(out, models.ReplayFailure{AnnotationID: string(f.ID), Type: string(f.Type), Error: f.Err})
	}
	return out
}

func parseColor(field, s string) (annotation.Color, error) {
	c, err := annotation.ParseColor(s)
	if err != nil {
		return annotation.Color{}, fmt.Errorf("%s: %w", field, err)
	}
	return c, nil
}

func getSession(mgr *session.Manager, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	return mgr.Get(id)
}

func screenPoint(x, y *float64) (*geom.ScreenPoint, error) {
	switch {
	case x == nil && y == nil:
		return nil, nil
	case x == nil || y == nil:
		return nil, fmt.Errorf("x and y must be given together")
	}
	return &geom.ScreenPoint{X: *x, Y: *y}, nil
}
