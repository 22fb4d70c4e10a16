package domain

type ProcessingMethod string

const (
	MethodEmbeddings ProcessingMethod = "embeddings"
	MethodLexical    ProcessingMethod = "lexical"
)

// ScoredChunk is one ranked retrieval hit. Confidence is always within [0,1].
type ScoredChunk struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// RetrievalResult is the per-query output of the retriever and its relevance gate.
type RetrievalResult struct {
	Method        ProcessingMethod `json:"method"`
	Chunks        []ScoredChunk    `json:"chunks"`
	TopConfidence float64          `json:"top_confidence"`
	// Found is true when the best hit passes the admission threshold.
	Found bool `json:"found"`
	// Accepted is true when the best hit passes the acceptance threshold or
	// enough admitted hits were combined into a multi-chunk context.
	Accepted      bool          `json:"accepted"`
	MultiChunk    bool          `json:"multi_chunk"`
	ContextChunks []ScoredChunk `json:"context_chunks,omitempty"`
}

func (r RetrievalResult) Best() (ScoredChunk, bool) {
	if len(r.Chunks) == 0 {
		return ScoredChunk{}, false
	}
	return r.Chunks[0], true
}

// KnowledgeAnswer is the query boundary of the knowledge base tier.
type KnowledgeAnswer struct {
	Answer           string           `json:"answer"`
	Relevant         bool             `json:"relevant"`
	Confidence       float64          `json:"confidence"`
	SourceDocuments  []string         `json:"source_documents"`
	ProcessingMethod ProcessingMethod `json:"processing_method"`
	Enhanced         bool             `json:"enhanced"`
}

// SearchHit is the content returned by a web search provider.
type SearchHit struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}
