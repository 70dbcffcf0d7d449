package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/models"
)

type ImagePlaceQuery struct {
	SessionID string   `json:"session_id"`
	ImageData []byte   `json:"image_data"`     // PNG or JPEG
	Kind      string   `json:"kind,omitempty"` // image, signature or stamp
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

type ImagePlaceResponse struct {
	Annotation *models.AnnotationInfo `json:"annotation"`
	Events     []models.EventInfo     `json:"events,omitempty"`
}

func ImagePlaceTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ImagePlaceQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "image-place",
		Description: "Place an image, signature or stamp on the document. Without x and y it lands where the image tool was last clicked, else near the top of the visible page. Large images are scaled down to fit.",
		InputSchema: inputschema,
	}
}

func ImagePlaceToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ImagePlaceQuery, mgr *session.Manager, log logger.Logger) (*mcp.CallToolResult, *ImagePlaceResponse, error) {
	log.Info("image-place tool called (%d bytes)", len(query.ImageData))
	s, err := getSession(mgr, query.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if len(query.ImageData) == 0 {
		return nil, nil, fmt.Errorf("image_data is required")
	}

	kind := annotation.ImageKind(query.Kind)
	switch kind {
	case "", annotation.ImageKindImage, annotation.ImageKindSignature, annotation.ImageKindStamp:
	default:
		return nil, nil, fmt.Errorf("unknown image kind %q", query.Kind)
	}
	at, err := screenPoint(query.X, query.Y)
	if err != nil {
		return nil, nil, err
	}

	a, events, err := s.PlaceImage(query.ImageData, kind, at)
	if err != nil {
		return nil, nil, err
	}
	return nil, &ImagePlaceResponse{Annotation: annotationInfo(a), Events: eventInfos(events)}, nil
}
