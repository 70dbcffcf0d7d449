package documents

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/Epistemic-Technology/pdfed/models"
	"github.com/Epistemic-Technology/zotero/zotero"
)

// FetchZoteroTitle returns the title of the bibliographic item a Zotero
// attachment belongs to. Orphaned attachments fall back to their own title.
func FetchZoteroTitle(ctx context.Context, zoteroID string, apiKey string, libraryID string) (string, error) {
	if apiKey == "" || libraryID == "" {
		return "", ErrNoZoteroKey
	}

	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))

	item, err := client.Item(ctx, zoteroID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Zotero item %s: %w", zoteroID, err)
	}

	if item.Data.ItemType == "attachment" && item.Data.ParentItem != "" {
		parent, err := client.Item(ctx, item.Data.ParentItem, nil)
		if err != nil {
			return "", fmt.Errorf("failed to fetch parent item %s: %w", item.Data.ParentItem, err)
		}
		item = parent
	}

	if item.Data.Title == "" {
		return item.Data.Filename, nil
	}
	return item.Data.Title, nil
}

// Title picks a display title for a document: an explicit title first, then
// the Zotero title, then the file name of the URL or path.
func Title(ctx context.Context, explicit string, src models.SourceInfo, creds Credentials) string {
	if explicit != "" {
		return explicit
	}
	if src.ZoteroID != "" {
		if t, err := FetchZoteroTitle(ctx, src.ZoteroID, creds.ZoteroAPIKey, creds.ZoteroLibraryID); err == nil && t != "" {
			return t
		}
	}
	for _, p := range []string{src.URL, src.Path} {
		if p == "" {
			continue
		}
		p = strings.TrimRight(strings.SplitN(p, "?", 2)[0], "/")
		if base := path.Base(strings.ReplaceAll(p, "\\", "/")); base != "." && base != "/" {
			return base
		}
	}
	return ""
}
