package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jung-kurt/gofpdf"

	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/geom"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
	"github.com/Epistemic-Technology/pdfed/models"
)

func setup(t *testing.T) (*SessionResourceHandler, *session.Session, storage.Store) {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: 300, Ht: 400})
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	mgr := session.NewManager(session.Options{
		Viewer:      viewport.Options{Scale: 1, ViewportWidth: 800, ViewportHeight: 600},
		Canvas:      canvas.Options{MinPageHeight: 50, MaxAttempts: 3, Interval: time.Millisecond},
		Interaction: interaction.DefaultOptions(),
		ResizeDelay: time.Millisecond,
	}, nil, logger.NewNoOpLogger())
	t.Cleanup(mgr.CloseAll)

	s, err := mgr.Open(context.Background(), "doc_res", "memo", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.WaitDiscovery(ctx); err != nil {
		t.Fatal(err)
	}
	return NewSessionResourceHandler(mgr, store), s, store
}

func TestReadAnnotations(t *testing.T) {
	h, s, _ := setup(t)
	if _, err := s.SetTool("highlight"); err != nil {
		t.Fatal(err)
	}
	// The page is centered: screen x 250 is page x 0.
	s.PointerDown(geom.ScreenPoint{X: 260, Y: 10})
	s.PointerMove(geom.ScreenPoint{X: 360, Y: 40})
	s.PointerUp(geom.ScreenPoint{X: 360, Y: 40})

	uri := "pdfed://" + s.ID + "/annotations"
	res, err := h.ReadResource(context.Background(), uri)
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	if res.Contents[0].MIMEType != "application/json" {
		t.Errorf("MIMEType = %s", res.Contents[0].MIMEType)
	}
	var got struct {
		SessionID   string                  `json:"session_id"`
		Annotations []models.AnnotationInfo `json:"annotations"`
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &got); err != nil {
		t.Fatal(err)
	}
	if got.SessionID != s.ID || len(got.Annotations) != 1 {
		t.Fatalf("annotations resource = %+v", got)
	}
	want := models.Rect{X: 10, Y: 10, Width: 100, Height: 30}
	if diff := cmp.Diff(want, got.Annotations[0].Bounds); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}
}

func TestReadSurface(t *testing.T) {
	h, s, _ := setup(t)
	res, err := h.ReadResource(context.Background(), "pdfed://"+s.ID+"/pages/1/surface")
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Contents[0].Blob))
	if err != nil {
		t.Fatalf("surface is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 400 {
		t.Errorf("surface size = %dx%d, want 300x400", b.Dx(), b.Dy())
	}

	if _, err := h.ReadResource(context.Background(), "pdfed://"+s.ID+"/pages/x/surface"); err == nil {
		t.Error("expected error for a non-numeric page")
	}
}

func TestReadSaves(t *testing.T) {
	ctx := context.Background()
	h, s, store := setup(t)
	data, report, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	id, err := store.StoreSave(ctx, &models.SaveRecord{DocumentID: s.DocumentID, SessionID: s.ID, Annotations: report.Applied, SizeBytes: len(data)}, data)
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.ReadResource(ctx, "pdfed://"+s.ID+"/saves")
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	var list struct {
		Saves []models.SaveRecord `json:"saves"`
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Saves) != 1 || list.Saves[0].SaveID != id {
		t.Errorf("saves = %+v", list.Saves)
	}

	res, err = h.ReadResource(ctx, storage.SaveResourcePath(s.ID, id))
	if err != nil {
		t.Fatalf("ReadResource(save) error = %v", err)
	}
	if !bytes.Equal(res.Contents[0].Blob, data) || res.Contents[0].MIMEType != "application/pdf" {
		t.Error("save resource does not return the stored PDF")
	}
}

func TestReadResourceErrors(t *testing.T) {
	h, s, _ := setup(t)
	ctx := context.Background()
	if _, err := h.ReadResource(ctx, "pdf://x/annotations"); err == nil {
		t.Error("expected error for foreign scheme")
	}
	if _, err := h.ReadResource(ctx, "pdfed://ses_missing/annotations"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("unknown session error = %v", err)
	}
	if _, err := h.ReadResource(ctx, "pdfed://"+s.ID+"/bogus"); err == nil {
		t.Error("expected error for unknown resource")
	}
}
