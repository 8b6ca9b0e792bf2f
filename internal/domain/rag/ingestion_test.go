package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	puts    map[string][]byte
	failKey string
}

func newFakeBlobStore() *fakeBlobStore { return &fakeBlobStore{puts: make(map[string][]byte)} }

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.failKey != "" && key == f.failKey {
		return "", errors.New("upload rejected")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = data
	return "https://blob.example/" + key, nil
}

func (f *fakeBlobStore) Delete(context.Context, string) error { return nil }

type stubPDFProcessor struct {
	mu      sync.Mutex
	byName  map[string]struct {
		chunks    []ChunkMetadata
		pageCount int
		status    ExtractionStatus
		err       error
	}
}

func newStubPDFProcessor() *stubPDFProcessor {
	return &stubPDFProcessor{byName: make(map[string]struct {
		chunks    []ChunkMetadata
		pageCount int
		status    ExtractionStatus
		err       error
	})}
}

func (s *stubPDFProcessor) set(filename string, chunks []ChunkMetadata, pageCount int, status ExtractionStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[filename] = struct {
		chunks    []ChunkMetadata
		pageCount int
		status    ExtractionStatus
		err       error
	}{chunks, pageCount, status, err}
}

func (s *stubPDFProcessor) Process(_ context.Context, _ []byte, filename string) ([]ChunkMetadata, int, ExtractionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byName[filename]
	if !ok {
		return nil, 0, ExtractionOK, fmt.Errorf("no stub configured for %s", filename)
	}
	return v.chunks, v.pageCount, v.status, v.err
}

type fakeAddVectorStore struct {
	fakeVectorStore
	mu     sync.Mutex
	added  []ChunkMetadata
	addErr error
}

func (f *fakeAddVectorStore) Add(_ context.Context, chunks []ChunkMetadata) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, chunks...)
	return nil
}

func newIngestionCoordinator(vs *fakeAddVectorStore, blob *fakeBlobStore, pdf *stubPDFProcessor, store *fakeChatStore) *IngestionCoordinator {
	return NewIngestionCoordinator(pdf, vs, blob, store, 2, nil)
}

func TestIngestSingleFileRegistersChunksAndFileRecord(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	pdf.set("a.pdf", []ChunkMetadata{
		{Filename: "a.pdf", PageNumber: 1, ChunkID: 0, Text: "Điều 1."},
		{Filename: "a.pdf", PageNumber: 2, ChunkID: 0, Text: "Điều 2."},
	}, 2, ExtractionOK, nil)
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	summary, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{{Filename: "a.pdf", Data: []byte("pdf-bytes")}})

	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalFiles)
	require.Equal(t, 1, summary.FilesWithText)
	require.Empty(t, summary.FilesWithoutText)
	require.Empty(t, summary.Failures)
	require.Equal(t, 2, summary.TotalPages)
	require.Len(t, vs.added, 2)
	for _, c := range vs.added {
		require.Equal(t, "user-1", c.UserID)
	}
}

func TestIngestNoTextFoundStillRegistersWithZeroChunks(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	pdf.set("scan.pdf", nil, 3, ExtractionNoTextFound, nil)
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	summary, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{{Filename: "scan.pdf", Data: []byte("x")}})

	require.NoError(t, err)
	require.Equal(t, 0, summary.FilesWithText)
	require.Equal(t, []string{"scan.pdf"}, summary.FilesWithoutText)
	require.Empty(t, summary.Failures)
	require.Empty(t, vs.added)
}

func TestIngestBlobUploadFailureIsolatesThatFile(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	blob.failKey = "ragviet/user-1/bad.pdf"
	pdf := newStubPDFProcessor()
	pdf.set("good.pdf", []ChunkMetadata{{Filename: "good.pdf", PageNumber: 1, Text: "ok"}}, 1, ExtractionOK, nil)
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	summary, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{
		{Filename: "bad.pdf", Data: []byte("x")},
		{Filename: "good.pdf", Data: []byte("y")},
	})

	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalFiles)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, "bad.pdf", summary.Failures[0].Filename)
	require.Equal(t, 1, summary.FilesWithText)
}

func TestIngestRejectsNonPDFExtension(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	summary, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{{Filename: "notes.txt", Data: []byte("x")}})

	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	require.Contains(t, summary.Failures[0].Reason, "not a PDF")
}

func TestIngestExtractionErrorIsolatesThatFile(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	pdf.set("broken.pdf", nil, 0, ExtractionInvalidDoc, errors.New("corrupt pdf"))
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	summary, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{{Filename: "broken.pdf", Data: []byte("x")}})

	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	require.Contains(t, summary.Failures[0].Reason, "extraction failed")
}

func TestDeleteFileRemovesChunksAndRecord(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	pdf.set("a.pdf", []ChunkMetadata{{Filename: "a.pdf", PageNumber: 1, Text: "x"}}, 1, ExtractionOK, nil)
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)
	_, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{{Filename: "a.pdf", Data: []byte("x")}})
	require.NoError(t, err)

	err = coordinator.DeleteFile(context.Background(), "user-1", "a.pdf")
	require.NoError(t, err)

	_, found, err := store.GetUserFile(context.Background(), "user-1", "a.pdf")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteFileUnknownFilenameReturnsNotFound(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)

	err := coordinator.DeleteFile(context.Background(), "user-1", "missing.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClearAllFilesRemovesEveryFile(t *testing.T) {
	vs := &fakeAddVectorStore{}
	blob := newFakeBlobStore()
	pdf := newStubPDFProcessor()
	pdf.set("a.pdf", []ChunkMetadata{{Filename: "a.pdf", PageNumber: 1, Text: "x"}}, 1, ExtractionOK, nil)
	pdf.set("b.pdf", []ChunkMetadata{{Filename: "b.pdf", PageNumber: 1, Text: "y"}}, 1, ExtractionOK, nil)
	store := newFakeChatStore()
	coordinator := newIngestionCoordinator(vs, blob, pdf, store)
	_, err := coordinator.Ingest(context.Background(), "user-1", []UploadFile{
		{Filename: "a.pdf", Data: []byte("x")},
		{Filename: "b.pdf", Data: []byte("y")},
	})
	require.NoError(t, err)

	require.NoError(t, coordinator.ClearAllFiles(context.Background(), "user-1"))

	files, err := store.GetUserFiles(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, files)
}
