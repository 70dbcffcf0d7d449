package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

var ErrNoPageImage = errors.New("pdfdoc: page has no decodable image")

// PageImage returns the largest image embedded on a page, encoded as PNG.
// Scanned documents carry each page as one full-page image, which is what
// text recognition needs.
func (d *Document) PageImage(pageNum int) ([]byte, error) {
	if d.original == nil {
		return nil, ErrNoDocument
	}
	if pageNum < 1 || pageNum > len(d.pages) {
		return nil, fmt.Errorf("page %d of %d: %w", pageNum, len(d.pages), ErrPageOutOfRange)
	}
	pages, err := api.ExtractImagesRaw(bytes.NewReader(d.original), []string{strconv.Itoa(pageNum)}, newConf())
	if err != nil {
		return nil, fmt.Errorf("extracting images of page %d: %w", pageNum, err)
	}

	var best image.Image
	bestArea := 0
	for _, imgs := range pages {
		for _, raw := range imgs {
			if raw.Thumb || raw.IsImgMask {
				continue
			}
			img, _, err := image.Decode(raw)
			if err != nil {
				d.log.Debug("skipping %s image %s on page %d: %v", raw.FileType, raw.Name, pageNum, err)
				continue
			}
			b := img.Bounds()
			if area := b.Dx() * b.Dy(); area > bestArea {
				best, bestArea = img, area
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("page %d: %w", pageNum, ErrNoPageImage)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, best); err != nil {
		return nil, fmt.Errorf("encoding page image: %w", err)
	}
	return buf.Bytes(), nil
}
