package models

// Page is one extracted document page. Pages exist only during ingestion;
// chunks are what gets persisted.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded-length excerpt of a leaflet, the unit of embedding and
// retrieval. Section is empty when the heading heuristic found nothing.
type Chunk struct {
	Index   int
	Page    int
	Section string
	Text    string
}

// RetrievedChunk is a chunk plus its relevance score for one query.
// Scores are cosine similarities in [-1, 1], or InjectedScore when the chunk
// was found only by the lexical fallback.
type RetrievedChunk struct {
	Text    string
	Page    int
	Section string
	Score   float64
}

// Citation is a verbatim supporting quote from the leaflet. Page is 0 and
// Section empty when unknown.
type Citation struct {
	Text    string `json:"text"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// Turn is one prior message in a chat, oldest first.
type Turn struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Answer is the result of one question through the pipeline.
type Answer struct {
	Answer     string
	Citations  []Citation
	IsGreeting bool
}

// IngestResult reports one document ingestion. PageCount is the document's
// total page count, including pages that yielded no text.
type IngestResult struct {
	LeafletID string
	PageCount int
}
