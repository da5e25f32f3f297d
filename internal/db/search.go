package db

// SearchResult represents one full-text search hit over chunks.
type SearchResult struct {
	ChunkID     int64  `json:"chunk_id"`
	RecordingID int64  `json:"recording_id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
}
