package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/pdfed/internal/documents"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/operations"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
)

type ZoteroSearchQuery struct {
	Query      string   `json:"query,omitempty"`      // Quick search text (searches title, creator, year)
	Tags       []string `json:"tags,omitempty"`       // Filter by tags
	Collection string   `json:"collection,omitempty"` // Filter by collection key (optional)
	Limit      int      `json:"limit,omitempty"`      // Max results (default 25)
	Sort       string   `json:"sort,omitempty"`       // Sort field (default "dateModified")
}

type ZoteroSearchResponse struct {
	Items []ZoteroItemResult `json:"items"`
	Count int                `json:"count"`
}

type ZoteroItemResult struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Creators []string  `json:"creators,omitempty"`
	ItemType string    `json:"item_type"`
	Date     string    `json:"date,omitempty"`
	PDFs     []PDFInfo `json:"pdfs"`
}

type PDFInfo struct {
	Key      string `json:"key"` // Use this as zotero_id in session-open
	Filename string `json:"filename"`
	LinkMode string `json:"link_mode"` // imported_file, imported_url, linked_file, linked_url
	// DocumentID is set when the attachment has been opened before; its saves
	// are listed under that id.
	DocumentID string `json:"document_id,omitempty"`
}

func ZoteroSearchTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ZoteroSearchQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "zotero-search",
		Description: "Search a Zotero library for items with PDF attachments. Use an attachment key as zotero_id in session-open to annotate the file.",
		InputSchema: inputschema,
	}
}

func ZoteroSearchToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ZoteroSearchQuery, creds documents.Credentials, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *ZoteroSearchResponse, error) {
	log.Info("zotero-search tool called")
	if creds.ZoteroAPIKey == "" || creds.ZoteroLibraryID == "" {
		return nil, nil, documents.ErrNoZoteroKey
	}

	items, err := operations.SearchZotero(ctx, creds.ZoteroAPIKey, creds.ZoteroLibraryID, operations.ZoteroSearchParams{
		Query:      query.Query,
		Tags:       query.Tags,
		Collection: query.Collection,
		Limit:      query.Limit,
		Sort:       query.Sort,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	opened := make(map[string]string)
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		// Enrichment only; the search result stands on its own.
		log.Error("Failed to list opened documents: %v", err)
	}
	for _, d := range docs {
		if d.SourceInfo.ZoteroID != "" {
			opened[d.SourceInfo.ZoteroID] = d.DocumentID
		}
	}

	results := make([]ZoteroItemResult, len(items))
	for i, item := range items {
		results[i] = ZoteroItemResult{
			Key:      item.Key,
			Title:    item.Title,
			Creators: item.Creators,
			ItemType: item.ItemType,
			Date:     item.Date,
		}
		for _, att := range item.PDFs {
			results[i].PDFs = append(results[i].PDFs, PDFInfo{
				Key:        att.Key,
				Filename:   att.Filename,
				LinkMode:   att.LinkMode,
				DocumentID: opened[att.Key],
			})
		}
	}

	return nil, &ZoteroSearchResponse{Items: results, Count: len(results)}, nil
}
