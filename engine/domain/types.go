// Package domain defines core types, constants, and validation for the
// doctalk engine. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// SourceType identifies what kind of source a document was built from.
type SourceType string

const (
	SourceYouTube SourceType = "youtube"
	SourcePDF     SourceType = "pdf"
)

// ValidSourceTypes is the set of recognised source types.
var ValidSourceTypes = map[SourceType]bool{
	SourceYouTube: true,
	SourcePDF:     true,
}

// Document is the metadata record for one processed source. It is created
// atomically at the end of a successful ingestion run and never partially
// registered. IDs are random per ingestion and never reused, even after
// deletion.
type Document struct {
	ID         string     `json:"id"`
	Type       SourceType `json:"type"`
	Name       string     `json:"name"`
	ChunkCount int        `json:"chunks_count"`
	EmbedModel string     `json:"embed_model"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MaxQuestionLen bounds chat questions.
const MaxQuestionLen = 4000
