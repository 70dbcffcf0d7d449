package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/config"
	"github.com/Epistemic-Technology/pdfed/internal/documents"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/ocr"
	"github.com/Epistemic-Technology/pdfed/internal/session"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/resources"
	"github.com/Epistemic-Technology/pdfed/tools"
)

// Version is reported to clients during initialization.
var Version = "v0.1.0"

// CreateServer builds the MCP server with its storage, OCR service and
// session manager. The returned function closes open sessions and the store.
func CreateServer(cfg *config.Config, log logger.Logger) (*mcp.Server, func()) {
	server := mcp.NewServer(&mcp.Implementation{Name: "pdfed", Version: Version}, nil)

	store, err := initializeStorage(cfg.Storage.DBPath, log)
	if err != nil {
		log.Fatal("Failed to initialize storage: %v", err)
	}

	mgr, err := initializeSessions(cfg, store, log)
	if err != nil {
		log.Fatal("Failed to configure sessions: %v", err)
	}

	creds := documents.Credentials{ZoteroAPIKey: cfg.Zotero.APIKey, ZoteroLibraryID: cfg.Zotero.LibraryID}
	resourceHandler := resources.NewSessionResourceHandler(mgr, store)

	// Session lifecycle
	mcp.AddTool(server, tools.SessionOpenTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.SessionOpenQuery) (*mcp.CallToolResult, *tools.SessionOpenResponse, error) {
		return tools.SessionOpenToolHandler(ctx, req, query, creds, store, mgr, log)
	})
	mcp.AddTool(server, tools.SessionCloseTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.SessionCloseQuery) (*mcp.CallToolResult, *tools.SessionCloseResponse, error) {
		return tools.SessionCloseToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.ZoteroSearchTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ZoteroSearchQuery) (*mcp.CallToolResult, *tools.ZoteroSearchResponse, error) {
		return tools.ZoteroSearchToolHandler(ctx, req, query, creds, store, log)
	})

	// Input
	mcp.AddTool(server, tools.PointerEventTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PointerEventQuery) (*mcp.CallToolResult, *tools.PointerEventResponse, error) {
		return tools.PointerEventToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.ToolSelectTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ToolSelectQuery) (*mcp.CallToolResult, *tools.ToolSelectResponse, error) {
		return tools.ToolSelectToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.ToolOptionsTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ToolOptionsQuery) (*mcp.CallToolResult, *tools.ToolOptionsResponse, error) {
		return tools.ToolOptionsToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.TextCommitTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.TextCommitQuery) (*mcp.CallToolResult, *tools.TextCommitResponse, error) {
		return tools.TextCommitToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.ImagePlaceTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ImagePlaceQuery) (*mcp.CallToolResult, *tools.ImagePlaceResponse, error) {
		return tools.ImagePlaceToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.ViewportUpdateTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ViewportUpdateQuery) (*mcp.CallToolResult, *tools.ViewportUpdateResponse, error) {
		return tools.ViewportUpdateToolHandler(ctx, req, query, mgr, log)
	})

	// Annotation model
	mcp.AddTool(server, tools.AnnotationListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AnnotationListQuery) (*mcp.CallToolResult, *tools.AnnotationListResponse, error) {
		return tools.AnnotationListToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.AnnotationSelectTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AnnotationSelectQuery) (*mcp.CallToolResult, *tools.AnnotationSelectResponse, error) {
		return tools.AnnotationSelectToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.AnnotationRemoveTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AnnotationRemoveQuery) (*mcp.CallToolResult, *tools.AnnotationRemoveResponse, error) {
		return tools.AnnotationRemoveToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.AnnotationUndoTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AnnotationUndoQuery) (*mcp.CallToolResult, *tools.AnnotationUndoResponse, error) {
		return tools.AnnotationUndoToolHandler(ctx, req, query, mgr, log)
	})

	// Document
	mcp.AddTool(server, tools.PageEditTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageEditQuery) (*mcp.CallToolResult, *tools.PageEditResponse, error) {
		return tools.PageEditToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.PageExtractTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageExtractQuery) (*mcp.CallToolResult, *tools.PageExtractResponse, error) {
		return tools.PageExtractToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.PageOCRTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageOCRQuery) (*mcp.CallToolResult, *tools.PageOCRResponse, error) {
		return tools.PageOCRToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.DocumentOverlayTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.DocumentOverlayQuery) (*mcp.CallToolResult, *tools.DocumentOverlayResponse, error) {
		return tools.DocumentOverlayToolHandler(ctx, req, query, mgr, log)
	})
	mcp.AddTool(server, tools.DocumentSaveTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.DocumentSaveQuery) (*mcp.CallToolResult, *tools.DocumentSaveResponse, error) {
		return tools.DocumentSaveToolHandler(ctx, req, query, mgr, store, log)
	})

	read := func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return resourceHandler.ReadResource(ctx, req.Params.URI)
	}

	// Template for the annotation list
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pdfed://{sessionId}/annotations",
		Name:        "session-annotations",
		Description: "Annotations of an editing session in z-order, in page pixels",
		MIMEType:    "application/json",
	}, read)

	// Template for the view state
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pdfed://{sessionId}/view",
		Name:        "session-view",
		Description: "Viewer layout, discovery mode, active tool and page surfaces",
		MIMEType:    "application/json",
	}, read)

	// Template for page surfaces
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pdfed://{sessionId}/pages/{pageNum}/surface",
		Name:        "page-surface",
		Description: "Annotation overlay of one page as a transparent PNG (1-indexed)",
		MIMEType:    "image/png",
	}, read)

	// Template for the save history
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pdfed://{sessionId}/saves",
		Name:        "document-saves",
		Description: "Stored saves of the session's document, newest first",
		MIMEType:    "application/json",
	}, read)

	// Template for a saved PDF
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "pdfed://{sessionId}/saves/{saveId}",
		Name:        "document-save",
		Description: "The bytes of one stored save",
		MIMEType:    "application/pdf",
	}, read)

	return server, func() {
		mgr.CloseAll()
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage: %v", err)
		}
	}
}

// initializeStorage creates and initializes the storage backend
func initializeStorage(dbPath string, log logger.Logger) (storage.Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}
	return store, nil
}

// initializeSessions builds the session manager. A missing OCR engine is not
// fatal: page-ocr reports it as unavailable.
func initializeSessions(cfg *config.Config, store storage.Store, log logger.Logger) (*session.Manager, error) {
	interactionOpts, err := cfg.InteractionOptions()
	if err != nil {
		return nil, err
	}

	var ocrSvc *ocr.Service
	engine, err := ocr.NewEngine(cfg.OCR.Engine, cfg.OCRSettings())
	if err != nil {
		log.Warn("OCR disabled: %v", err)
	} else {
		ocrSvc = ocr.NewService(engine, store, cfg.OCR.Languages, log.Named("ocr"))
		log.Info("OCR engine: %s", engine.Name())
	}

	return session.NewManager(session.Options{
		Viewer:        cfg.ViewerOptions(),
		Canvas:        cfg.CanvasOptions(),
		Interaction:   interactionOpts,
		ResizeDelay:   cfg.Discovery.ResizeDelay,
		MinConfidence: cfg.OCR.MinConfidence,
	}, ocrSvc, log.Named("session")), nil
}
