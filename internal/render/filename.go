package render

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// ExportFilename derives the exported file name from the proposal title:
// every whitespace run becomes a single hyphen and the result is lower-cased.
func ExportFilename(title string) string {
	var b strings.Builder
	b.WriteString("proposta-")
	inSpace := false
	for _, r := range title {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	b.WriteString(".pdf")
	return b.String()
}

// Fingerprint is a stable BLAKE2b-256 digest of the document and any extra
// inputs (such as logo bytes). Identical inputs always compose to identical
// fingerprints.
func Fingerprint(doc *Document, extra ...[]byte) string {
	h, _ := blake2b.New256(nil)
	b, _ := json.Marshal(doc)
	h.Write(b)
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write(e)
	}
	return hex.EncodeToString(h.Sum(nil))
}
