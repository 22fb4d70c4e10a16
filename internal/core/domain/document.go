package domain

import "time"

// SourceDocument is a named blob submitted for ingestion.
type SourceDocument struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Document is an extracted, fingerprinted source document.
type Document struct {
	Filename    string    `json:"filename"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Chunk is a contiguous word window of a document. Start and End are token offsets, End exclusive.
type Chunk struct {
	Sequence  int    `json:"sequence"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	WordCount int    `json:"word_count"`
	Overlap   int    `json:"overlap"`
	Text      string `json:"text"`
}

type ChunkMetadata struct {
	Filename    string    `json:"filename"`
	ChunkIndex  int       `json:"chunk_index"`
	Fingerprint string    `json:"content_hash"`
	IngestedAt  time.Time `json:"upload_timestamp"`
	ChunkLength int       `json:"chunk_length"`
}

// IndexEntry is the immutable indexed form of a chunk. Vector is set only for the embedding index.
type IndexEntry struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Vector   []float32     `json:"vector,omitempty"`
	Metadata ChunkMetadata `json:"metadata"`
}

type RejectedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// IngestResult reports the outcome of one ingestion batch.
type IngestResult struct {
	DocumentsAdded    int            `json:"documents_added"`
	DuplicatesSkipped int            `json:"duplicates_skipped"`
	FilesProcessed    []string       `json:"files_processed"`
	FilesRejected     []RejectedFile `json:"files_rejected,omitempty"`
}

type IndexStats struct {
	TotalChunks      int              `json:"total_documents"`
	ProcessingMethod ProcessingMethod `json:"processing_method"`
	UsingEmbeddings  bool             `json:"using_embeddings"`
}
