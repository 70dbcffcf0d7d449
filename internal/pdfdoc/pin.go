package pdfdoc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	infoDate = regexp.MustCompile(`/(?:CreationDate|ModDate)\s*\(D:\d{14}[+-]\d{2}'\d{2}'\)`)
	fileID   = regexp.MustCompile(`/ID\s*\[\s*<([0-9A-Fa-f]*)>\s*<([0-9A-Fa-f]*)>\s*\]`)
)

// pinVolatile rewrites the values pdfcpu takes from the clock on every write:
// the info dictionary dates and the file identifier. Dates become stamp; the
// identifier is derived from the content. Every replacement keeps its length
// so cross-reference offsets stay valid. Values already present in original
// are left alone.
func pinVolatile(out, original []byte, stamp time.Time) []byte {
	date := []byte(stamp.UTC().Format("D:20060102150405") + "+00'00'")
	out = infoDate.ReplaceAllFunc(out, func(m []byte) []byte {
		open := bytes.IndexByte(m, '(')
		if bytes.Contains(original, m[open:]) {
			return m
		}
		r := slices.Clone(m[:open+1])
		r = append(r, date...)
		return append(r, ')')
	})

	masked := fileID.ReplaceAllFunc(slices.Clone(out), func(m []byte) []byte {
		return bytes.Repeat([]byte{'0'}, len(m))
	})
	instance := sha256.Sum256(masked)
	permanent := sha256.Sum256(original)
	lowerOriginal := bytes.ToLower(original)

	return fileID.ReplaceAllFunc(out, func(m []byte) []byte {
		idx := fileID.FindSubmatchIndex(m)
		r := slices.Clone(m)
		first := m[idx[2]:idx[3]]
		if !bytes.Contains(lowerOriginal, bytes.ToLower(first)) {
			copy(r[idx[2]:idx[3]], fitHex(permanent[:], len(first)))
		}
		copy(r[idx[4]:idx[5]], fitHex(instance[:], idx[5]-idx[4]))
		return r
	})
}

// fitHex encodes sum as exactly n hex digits.
func fitHex(sum []byte, n int) string {
	h := hex.EncodeToString(sum)
	return strings.Repeat(h, n/len(h)+1)[:n]
}
