package rag

import "context"

// PDFProcessor turns a PDF byte stream into an ordered sequence of chunks
// annotated with their source page. It never crosses page boundaries
// within a single chunk.
type PDFProcessor interface {
	Process(ctx context.Context, data []byte, filename string) (chunks []ChunkMetadata, pageCount int, status ExtractionStatus, err error)
}

// Embedder maps texts to fixed-dimension float32 vectors. Implementations
// are pure with respect to their loaded model: the same text always
// yields the same vector within one process lifetime.
type Embedder interface {
	Load(ctx context.Context) error
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore is the in-memory dense index plus parallel metadata list,
// guarded by a reader-writer lock discipline: Search/GetAdjacent/GetStats
// are readers, everything else is a writer.
type VectorStore interface {
	Add(ctx context.Context, chunks []ChunkMetadata) error
	Search(ctx context.Context, query string, topK int, filenameFilter, userFilter string) ([]SearchResult, error)
	GetAdjacent(ctx context.Context, seeds []SearchResult, pageRange int) ([]SearchResult, error)
	DeleteByFilename(ctx context.Context, filename, userFilter string) error
	DeleteTempFilesByUser(ctx context.Context, userID string, validFilenames []string) error
	ClearAll(ctx context.Context) error
	GetStats(ctx context.Context, userFilter string) (Stats, error)
}

// Reranker reorders dense-search candidates by cross-encoder relevance.
// Its absence is operational, never fatal: callers degrade to the
// unranked input.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []SearchResult, topK int) ([]RerankedResult, error)
	Available() bool
}

// NaturalLanguageFilter short-circuits greetings and meaningless inputs
// before they reach retrieval.
type NaturalLanguageFilter interface {
	Classify(query string) (reply string, matched bool)
}

// LLM produces grounded answers for an assembled prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string, model string, maxTokens int) (string, error)
}

// BlobStore persists original PDF bytes under a user-scoped key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// ChatStore is the durable record of users, auth sessions, files, chat
// sessions and turns. Implemented by an infra adapter (Postgres in
// production, in-memory for tests).
type ChatStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, bool, error)
	GetUserByID(ctx context.Context, id string) (User, bool, error)
	DeleteUser(ctx context.Context, id string) error
	SetUserActive(ctx context.Context, id string, active bool) error

	CreateResetToken(ctx context.Context, email string) (otp string, err error)
	ResetPassword(ctx context.Context, email, otp, newPasswordHash string) error

	CreateAuthSession(ctx context.Context, userID string, ttl int64) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, bool, error)
	DeleteAuthSession(ctx context.Context, token string) error

	CreateChatSession(ctx context.Context, userID, title string) (ChatSession, error)
	UpdateChatSessionTitle(ctx context.Context, id, title string) error
	GetChatSessions(ctx context.Context, userID string, limit int) ([]ChatSession, error)
	GetChatSession(ctx context.Context, id string) (ChatSession, bool, error)
	GetSessionMessages(ctx context.Context, sessionID string) ([]ChatTurn, error)

	SaveChatTurn(ctx context.Context, turn ChatTurn) error

	SaveFileRecord(ctx context.Context, rec FileRecord) error
	GetUserFiles(ctx context.Context, userID string) ([]FileRecord, error)
	GetUserFile(ctx context.Context, userID, filename string) (FileRecord, bool, error)
	DeleteUserFile(ctx context.Context, userID, filename string) error
	UpdateFileChunks(ctx context.Context, userID, filename string, chunkCount int) error
}
