package adapter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText collapses whitespace runs and non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// StripHTML flattens an HTML fragment (career APIs like returning
// markup inside description fields) into clean text. Input that isn't
// HTML passes through with whitespace normalized.
func StripHTML(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return CleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	return CleanText(doc.Text())
}

// DerivePostID synthesizes a stable identifier for sources that expose
// none: the hash of the posting URL when present, else the content
// fingerprint.
func DerivePostID(url, fingerprint string) string {
	if u := strings.TrimSpace(url); u != "" {
		sum := sha256.Sum256([]byte("url:" + u))
		return hex.EncodeToString(sum[:])
	}
	return fingerprint
}
