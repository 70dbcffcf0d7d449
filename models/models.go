package models

import "time"

// DocumentData is a fetched document and its detected type.
type DocumentData struct {
	Data []byte `json:"-"`
	Type string `json:"type"`
}

// SourceInfo contains information about where the PDF came from
type SourceInfo struct {
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
}

// DocumentRecord is a document that has been opened for editing
type DocumentRecord struct {
	DocumentID string     `json:"document_id"`
	Title      string     `json:"title,omitempty"`
	Type       string     `json:"type"`
	PageCount  int        `json:"page_count"`
	SizeBytes  int        `json:"size_bytes"`
	SourceInfo SourceInfo `json:"source_info,omitzero"`
	CreatedAt  time.Time  `json:"created_at,omitzero"`
}

// SaveRecord describes one saved output of an editing session
type SaveRecord struct {
	SaveID      string    `json:"save_id"`
	DocumentID  string    `json:"document_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Annotations int       `json:"annotations"`
	Skipped     int       `json:"skipped,omitempty"`
	Encrypted   bool      `json:"encrypted,omitempty"`
	SizeBytes   int       `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// PageInfo is the size of a page in PDF points and on screen
type PageInfo struct {
	PageNum      int     `json:"page_num"`
	WidthPoints  float64 `json:"width_points"`
	HeightPoints float64 `json:"height_points"`
	WidthPixels  float64 `json:"width_pixels"`
	HeightPixels float64 `json:"height_pixels"`
}

// SurfaceInfo is a registered drawing surface and its screen placement
type SurfaceInfo struct {
	PageNum int     `json:"page_num"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Global  bool    `json:"global,omitempty"`
}

// ViewState summarizes the viewer and page canvas registry of a session
type ViewState struct {
	Mode           string        `json:"mode"`
	Scale          float64       `json:"scale"`
	ScrollX        float64       `json:"scroll_x"`
	ScrollY        float64       `json:"scroll_y"`
	ViewportWidth  float64       `json:"viewport_width"`
	ViewportHeight float64       `json:"viewport_height"`
	DPR            float64       `json:"dpr"`
	Tool           string        `json:"tool"`
	State          string        `json:"state"`
	Pages          []PageInfo    `json:"pages"`
	Surfaces       []SurfaceInfo `json:"surfaces"`
}

// Rect is a rectangle in page-relative pixels
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AnnotationInfo is an annotation as reported to the host. Data holds the
// type-specific payload.
type AnnotationInfo struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	PageNum int    `json:"page_num"`
	Bounds  Rect   `json:"bounds"`
	Data    any    `json:"data,omitempty"`
}

// EventInfo is a notification for the host: a widget to show or an
// annotation that was created or changed. X and Y are page-relative pixels,
// ScreenX and ScreenY viewport pixels.
type EventInfo struct {
	Kind       string          `json:"kind"`
	PageNum    int             `json:"page_num,omitempty"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	ScreenX    float64         `json:"screen_x"`
	ScreenY    float64         `json:"screen_y"`
	Annotation *AnnotationInfo `json:"annotation,omitempty"`
}

// ReplayFailure is an annotation that could not be written on save
type ReplayFailure struct {
	AnnotationID string `json:"annotation_id"`
	Type         string `json:"type"`
	Error        string `json:"error"`
}

// OCRWord is a recognized word placed on its page
type OCRWord struct {
	Text          string  `json:"text"`
	Bounds        Rect    `json:"bounds"`
	Confidence    float64 `json:"confidence"`
	FontSize      float64 `json:"font_size"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Point is a position in viewport pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
