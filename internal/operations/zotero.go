package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/zotero/zotero"
)

// ZoteroSearchParams contains parameters for searching a Zotero library.
type ZoteroSearchParams struct {
	Query      string   // Quick search text (searches title, creator, year)
	Tags       []string // Filter by tags
	Collection string   // Filter by collection key (optional)
	Limit      int      // Max results (default 25)
	Sort       string   // Sort field (default "dateModified")
}

// ZoteroItemResult is a Zotero item that has at least one PDF attachment.
type ZoteroItemResult struct {
	Key      string
	Title    string
	Creators []string
	ItemType string
	Date     string
	PDFs     []AttachmentInfo
}

// AttachmentInfo is a PDF file attached to a Zotero item.
type AttachmentInfo struct {
	Key      string // Use this as zotero_id in session-open
	Filename string
	LinkMode string // imported_file, imported_url, linked_file, linked_url
}

// isPDF reports whether an attachment can be opened for editing. Linked
// files live on the user's disk and cannot be downloaded through the API.
func isPDF(contentType, filename, linkMode string) bool {
	if linkMode == "linked_file" || linkMode == "linked_url" {
		return false
	}
	return contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// SearchZotero searches a Zotero library and returns the items that carry
// PDF attachments, with those attachments.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - apiKey: Zotero API key for authentication
//   - libraryID: Zotero library ID (user or group)
//   - params: Search parameters (query, tags, collection, limit, sort)
//   - log: Logger for recording operations
//
// Returns:
//   - results: Items with at least one downloadable PDF
//   - error: Any error encountered during the search
func SearchZotero(ctx context.Context, apiKey, libraryID string, params ZoteroSearchParams, log logger.Logger) ([]ZoteroItemResult, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Zotero API key is required")
	}
	if libraryID == "" {
		return nil, fmt.Errorf("Zotero library ID is required")
	}

	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))

	queryParams := &zotero.QueryParams{
		Q:        params.Query,
		QMode:    "titleCreatorYear",
		Tag:      params.Tags,
		ItemType: []string{"-attachment"},
		Limit:    params.Limit,
		Sort:     params.Sort,
	}
	if queryParams.Limit == 0 {
		queryParams.Limit = 25
	}
	if queryParams.Sort == "" {
		queryParams.Sort = "dateModified"
	}

	var items []zotero.Item
	var err error
	if params.Collection != "" {
		items, err = client.CollectionItems(ctx, params.Collection, queryParams)
		if err != nil {
			log.Error("Failed to search collection %s: %v", params.Collection, err)
			return nil, fmt.Errorf("failed to search collection %s: %w", params.Collection, err)
		}
	} else {
		items, err = client.Items(ctx, queryParams)
		if err != nil {
			log.Error("Failed to search Zotero library: %v", err)
			return nil, fmt.Errorf("failed to search Zotero library: %w", err)
		}
	}

	log.Info("Found %d items in Zotero library", len(items))

	results := make([]ZoteroItemResult, 0, len(items))
	for _, item := range items {
		if item.Data.ItemType == "attachment" {
			continue
		}

		children, err := client.Children(ctx, item.Key, nil)
		if err != nil {
			log.Error("Failed to retrieve children for item %s: %v", item.Key, err)
			continue
		}

		result := ZoteroItemResult{
			Key:      item.Key,
			Title:    item.Data.Title,
			ItemType: item.Data.ItemType,
			Date:     item.Data.DateAdded,
		}
		for _, child := range children {
			if child.Data.ItemType == "attachment" && isPDF(child.Data.ContentType, child.Data.Filename, child.Data.LinkMode) {
				result.PDFs = append(result.PDFs, AttachmentInfo{
					Key:      child.Key,
					Filename: child.Data.Filename,
					LinkMode: child.Data.LinkMode,
				})
			}
		}
		if len(result.PDFs) == 0 {
			continue
		}

		for _, creator := range item.Data.Creators {
			if creator.Name != "" {
				result.Creators = append(result.Creators, creator.Name)
			} else if name := strings.TrimSpace(creator.FirstName + " " + creator.LastName); name != "" {
				result.Creators = append(result.Creators, name)
			}
		}
		results = append(results, result)
	}

	log.Info("Returning %d items with PDFs", len(results))

	return results, nil
}
