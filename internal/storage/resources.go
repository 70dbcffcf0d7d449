package storage

import (
	"fmt"
)

// CalculateResourcePaths generates the resource URIs available for an open
// editing session: the annotation list, one surface per page and the save
// history of the underlying document.
func CalculateResourcePaths(sessionID string, pageCount int) []string {
	resourcePaths := []string{
		fmt.Sprintf("pdfed://%s/annotations", sessionID),
		fmt.Sprintf("pdfed://%s/saves", sessionID),
	}

	// Add sample surface paths for the first and last page
	if pageCount > 0 {
		resourcePaths = append(resourcePaths, fmt.Sprintf("pdfed://%s/pages/1/surface", sessionID))
	}
	if pageCount > 1 {
		resourcePaths = append(resourcePaths, fmt.Sprintf("pdfed://%s/pages/%d/surface", sessionID, pageCount))
	}

	// Add template for accessing any page
	resourcePaths = append(resourcePaths, fmt.Sprintf("pdfed://%s/pages/{pageNum}/surface", sessionID))

	return resourcePaths
}

// SaveResourcePath is the URI of one stored save, served as PDF bytes.
func SaveResourcePath(sessionID, saveID string) string {
	return fmt.Sprintf("pdfed://%s/saves/%s", sessionID, saveID)
}
