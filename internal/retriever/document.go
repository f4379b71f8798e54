// Package retriever finds reference documents for a claim and builds the
// reference collection they are searched in.
package retriever

import (
	"strings"
)

// Payload keys written by the ingester.
const (
	keyText     = "text"
	keyFilename = "filename"
	keyMetadata = "metadata"
	keyChunk    = "chunk"
)

// Document is a retrieved reference chunk.
type Document struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Filename string  `json:"filename"`
	Metadata string  `json:"metadata,omitempty"`
	Title    string  `json:"title,omitempty"`
	URL      string  `json:"url,omitempty"`
	Score    float32 `json:"score"`
}

// titleFromMetadata extracts the value of a "title=" entry. Corpora store
// either "title=..." alone or ";"-separated key=value pairs.
func titleFromMetadata(meta string) string {
	for _, part := range strings.Split(meta, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "title") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
