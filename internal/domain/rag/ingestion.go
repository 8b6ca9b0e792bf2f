package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ragviet/ragviet-service/pkg/util"
)

const defaultIngestConcurrency = 4

// UploadFile is one file in an ingestion request, already read into memory
// by the HTTP layer.
type UploadFile struct {
	Filename string
	Data     []byte
}

// IngestionCoordinator runs the per-upload transaction: purge orphaned temp
// chunks, upload each file's bytes to blob storage, displace any prior
// version of the same filename, extract and chunk, then index everything
// in one batch so a file's chunks become searchable atomically.
type IngestionCoordinator struct {
	pdf         PDFProcessor
	vectorStore VectorStore
	blobStore   BlobStore
	chatStore   ChatStore
	semaphore   chan struct{}
	logger      *slog.Logger
}

// NewIngestionCoordinator wires the coordinator. concurrency bounds how
// many files, across all requests, are uploaded/processed at once; values <= 0
// fall back to a small default.
func NewIngestionCoordinator(pdf PDFProcessor, vectorStore VectorStore, blobStore BlobStore, chatStore ChatStore, concurrency int, logger *slog.Logger) *IngestionCoordinator {
	if concurrency <= 0 {
		concurrency = defaultIngestConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionCoordinator{
		pdf:         pdf,
		vectorStore: vectorStore,
		blobStore:   blobStore,
		chatStore:   chatStore,
		semaphore:   make(chan struct{}, concurrency),
		logger:      logger.With("component", "rag.ingestion"),
	}
}

type fileOutcome struct {
	filename      string
	blobURL       string
	blobKey       string
	chunks        []ChunkMetadata
	pageCount     int
	status        ExtractionStatus
	registered    bool
	failureReason string
}

// Ingest runs the full pipeline for one batch of files belonging to one
// user and returns a summary of what was indexed.
func (c *IngestionCoordinator) Ingest(ctx context.Context, userID string, files []UploadFile) (IngestionSummary, error) {
	validFilenames, err := c.collectValidFilenames(ctx, userID, files)
	if err != nil {
		c.logger.Warn("failed to list existing files before purge", "user_id", userID, "error", err)
	}
	if err := c.vectorStore.DeleteTempFilesByUser(ctx, userID, validFilenames); err != nil {
		c.logger.Warn("temp file purge failed", "user_id", userID, "error", err)
	}

	outcomes := make([]fileOutcome, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f UploadFile) {
			defer wg.Done()
			c.semaphore <- struct{}{}
			defer func() { <-c.semaphore }()
			outcomes[i] = c.processFile(ctx, userID, f)
		}(i, f)
	}
	wg.Wait()

	return c.finalize(ctx, userID, outcomes)
}

func (c *IngestionCoordinator) collectValidFilenames(ctx context.Context, userID string, files []UploadFile) ([]string, error) {
	existing, err := c.chatStore.GetUserFiles(ctx, userID)
	seen := make(map[string]bool)
	var all []string
	for _, rec := range existing {
		if !seen[rec.Filename] {
			seen[rec.Filename] = true
			all = append(all, rec.Filename)
		}
	}
	for _, f := range files {
		if !seen[f.Filename] {
			seen[f.Filename] = true
			all = append(all, f.Filename)
		}
	}
	return all, err
}

func (c *IngestionCoordinator) processFile(ctx context.Context, userID string, f UploadFile) fileOutcome {
	outcome := fileOutcome{filename: f.Filename}

	if !hasPDFExtension(f.Filename) {
		outcome.failureReason = "not a PDF file"
		return outcome
	}

	key := fmt.Sprintf("ragviet/%s/%s", userID, f.Filename)
	url, err := c.blobStore.Put(ctx, key, f.Data, "application/pdf")
	if err != nil {
		outcome.failureReason = fmt.Sprintf("blob upload failed: %v", err)
		return outcome
	}
	outcome.blobURL = url
	outcome.blobKey = key

	if err := c.vectorStore.DeleteByFilename(ctx, f.Filename, userID); err != nil {
		c.logger.Warn("failed to displace prior version of file", "filename", f.Filename, "user_id", userID, "error", err)
	}

	chunks, pageCount, status, err := c.pdf.Process(ctx, f.Data, f.Filename)
	if err != nil {
		outcome.failureReason = fmt.Sprintf("extraction failed: %v", err)
		return outcome
	}
	for i := range chunks {
		chunks[i].UserID = userID
	}

	outcome.chunks = chunks
	outcome.pageCount = pageCount
	outcome.status = status
	outcome.registered = true
	return outcome
}

func (c *IngestionCoordinator) finalize(ctx context.Context, userID string, outcomes []fileOutcome) (IngestionSummary, error) {
	summary := IngestionSummary{TotalFiles: len(outcomes)}
	var allChunks []ChunkMetadata

	for _, o := range outcomes {
		if !o.registered {
			summary.Failures = append(summary.Failures, IngestionFailure{Filename: o.filename, Reason: o.failureReason})
			continue
		}
		summary.TotalPages += o.pageCount
		if o.status == ExtractionOK {
			summary.FilesWithText++
		} else {
			summary.FilesWithoutText = append(summary.FilesWithoutText, o.filename)
		}
		allChunks = append(allChunks, o.chunks...)
	}

	if len(allChunks) > 0 {
		if err := c.vectorStore.Add(ctx, allChunks); err != nil {
			return summary, fmt.Errorf("index batch: %w", err)
		}
	}

	for _, o := range outcomes {
		if !o.registered {
			continue
		}
		rec := FileRecord{
			OwnerID:    userID,
			Filename:   o.filename,
			BlobURL:    o.blobURL,
			BlobKey:    o.blobKey,
			ChunkCount: len(o.chunks),
			UploadedAt: NewTimestamp(util.NowUTC()),
		}
		if err := c.chatStore.SaveFileRecord(ctx, rec); err != nil {
			c.logger.Error("failed to save file record", "filename", o.filename, "user_id", userID, "error", err)
		}
	}

	return summary, nil
}

// DeleteFile removes one user's file from the vector index, blob storage,
// and the file registry.
func (c *IngestionCoordinator) DeleteFile(ctx context.Context, userID, filename string) error {
	rec, found, err := c.chatStore.GetUserFile(ctx, userID, filename)
	if err != nil {
		return fmt.Errorf("lookup file record: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	if err := c.vectorStore.DeleteByFilename(ctx, filename, userID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if rec.BlobKey != "" {
		if err := c.blobStore.Delete(ctx, rec.BlobKey); err != nil {
			c.logger.Warn("blob delete failed", "filename", filename, "user_id", userID, "error", err)
		}
	}
	return c.chatStore.DeleteUserFile(ctx, userID, filename)
}

// ClearAllFiles removes every file the user has uploaded.
func (c *IngestionCoordinator) ClearAllFiles(ctx context.Context, userID string) error {
	files, err := c.chatStore.GetUserFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("list user files: %w", err)
	}
	for _, rec := range files {
		if err := c.DeleteFile(ctx, userID, rec.Filename); err != nil {
			c.logger.Error("failed to delete file during clear-all", "filename", rec.Filename, "user_id", userID, "error", err)
		}
	}
	return nil
}

func hasPDFExtension(filename string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".pdf")
}
