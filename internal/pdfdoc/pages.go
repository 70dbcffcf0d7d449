package pdfdoc

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// NormalizeRotation maps any multiple of 90 into [0, 360).
func NormalizeRotation(deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("%d: %w", deg, ErrInvalidRotation)
	}
	return ((deg % 360) + 360) % 360, nil
}

// ApplyPageMutations restructures the document: the result has one page per
// mutation, taken from OriginalIndex (1-based) and rotated by Rotation.
// Pages not listed are deleted. The restructured bytes become the new
// original and pending drawing calls are discarded.
func (d *Document) ApplyPageMutations(mutations []PageMutation) error {
	if d.original == nil {
		return ErrNoDocument
	}
	if len(mutations) == 0 {
		return fmt.Errorf("a document needs at least one page")
	}

	selection := make([]string, len(mutations))
	rotations := make(map[int][]string)
	for i, m := range mutations {
		if m.OriginalIndex < 1 || m.OriginalIndex > len(d.pages) {
			return fmt.Errorf("original page %d of %d: %w", m.OriginalIndex, len(d.pages), ErrPageOutOfRange)
		}
		rot, err := NormalizeRotation(m.Rotation)
		if err != nil {
			return err
		}
		selection[i] = strconv.Itoa(m.OriginalIndex)
		if rot != 0 {
			rotations[rot] = append(rotations[rot], strconv.Itoa(i+1))
		}
	}

	data := d.original
	if !isIdentity(mutations, len(d.pages)) {
		var buf bytes.Buffer
		if err := api.Collect(bytes.NewReader(data), &buf, selection, newConf()); err != nil {
			return fmt.Errorf("reordering pages: %w", err)
		}
		data = buf.Bytes()
	}

	degrees := make([]int, 0, len(rotations))
	for rot := range rotations {
		degrees = append(degrees, rot)
	}
	slices.Sort(degrees)
	for _, rot := range degrees {
		var buf bytes.Buffer
		if err := api.Rotate(bytes.NewReader(data), &buf, rot, rotations[rot], newConf()); err != nil {
			return fmt.Errorf("rotating pages %v: %w", rotations[rot], err)
		}
		data = buf.Bytes()
	}

	if err := d.load(data); err != nil {
		return err
	}
	d.ops = nil
	d.log.Info("restructured document: %d page(s)", len(d.pages))
	return nil
}

func isIdentity(mutations []PageMutation, pageCount int) bool {
	if len(mutations) != pageCount {
		return false
	}
	for i, m := range mutations {
		if m.OriginalIndex != i+1 {
			return false
		}
	}
	return true
}

// Encrypt protects data with AES-256. The user password opens the document,
// the owner password unlocks permissions.
func Encrypt(data []byte, userPW, ownerPW string) ([]byte, error) {
	if ownerPW == "" {
		ownerPW = userPW
	}
	if ownerPW == "" {
		return nil, fmt.Errorf("a password is required")
	}
	conf := model.NewAESConfiguration(userPW, ownerPW, 256)
	var buf bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &buf, conf); err != nil {
		return nil, fmt.Errorf("encrypting document: %w", err)
	}
	return buf.Bytes(), nil
}
