package semantic

// ChunkRecord is one chunk to store: its text, embedding, and position
// within the owning document.
type ChunkRecord struct {
	Text      string
	Embedding []float32
	Index     int
}

// ScoredChunk is a single similarity-search hit.
type ScoredChunk struct {
	Text  string  `json:"text"`
	Index int     `json:"chunk_index"`
	Score float32 `json:"score"`
}
