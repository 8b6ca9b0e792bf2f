package rag

// ExtractionStatus reports the outcome of PDF text extraction.
type ExtractionStatus string

const (
	ExtractionOK             ExtractionStatus = "ok"
	ExtractionNoTextFound    ExtractionStatus = "no_text_extracted"
	ExtractionInvalidDoc     ExtractionStatus = "invalid"
)

// ChunkMetadata describes one retrieval unit. It always travels alongside
// its vector at the same positional index inside the VectorStore.
type ChunkMetadata struct {
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"pageNumber"`
	ChunkID    int    `json:"chunkId"`
	UserID     string `json:"userId"`
}

// Chunk pairs a metadata entry with its embedding, the unit PDFProcessor
// hands to the VectorStore.
type Chunk struct {
	Metadata ChunkMetadata
	Vector   []float32
}

// SearchResult is a metadata entry surfaced by VectorStore.Search or
// VectorStore.GetAdjacent, carrying the raw L2 distance for logging.
type SearchResult struct {
	ChunkMetadata
	Distance float64
}

// RerankedResult adds a cross-encoder score to a SearchResult.
type RerankedResult struct {
	SearchResult
	RerankScore float64
}

// Stats summarizes VectorStore content, optionally scoped to one user.
type Stats struct {
	TotalChunks int            `json:"totalChunks"`
	TotalFiles  int            `json:"totalFiles"`
	Files       map[string]int `json:"files"`
}

// User is a registered account. Password hashing and OTP reset live on
// ChatStore; this type is the shape core components read.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    Timestamp
}

// AuthSession is an opaque, server-side session token. Per design, no
// user state is embedded in the token itself.
type AuthSession struct {
	Token     string
	UserID    string
	IssuedAt  Timestamp
	ExpiresAt Timestamp
}

// FileRecord is the per-user registry entry for one uploaded PDF.
type FileRecord struct {
	OwnerID    string
	Filename   string
	BlobURL    string
	BlobKey    string
	ChunkCount int
	UploadedAt Timestamp
}

// ChatSession groups a user's turns under one title.
type ChatSession struct {
	ID           string
	UserID       string
	Title        string
	CreatedAt    Timestamp
	UpdatedAt    Timestamp
	MessageCount int
}

// ChatTurn is one append-only question/answer exchange.
type ChatTurn struct {
	ID           string
	UserID       string
	SessionID    string
	Message      string
	Response     string
	SelectedFile string
	CreatedAt    Timestamp
}

// IngestionSummary is returned to the caller of IngestionCoordinator.Ingest.
type IngestionSummary struct {
	TotalFiles       int
	FilesWithText    int
	FilesWithoutText []string
	TotalPages       int
	Failures         []IngestionFailure
}

// IngestionFailure records a single file that could not be ingested.
type IngestionFailure struct {
	Filename string
	Reason   string
}
