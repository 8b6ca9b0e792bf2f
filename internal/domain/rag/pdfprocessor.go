package rag

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	minWindowSize = 300
	maxWindowSize = 500
	defaultWindow = 400
	defaultOverlap = 100
)

// PageExtractor extracts page-ordered text from a PDF byte stream; pages
// may come back empty or untrimmed, and Process trims them and skips the
// empty ones. It is the only collaborator windowChunker needs from the infra
// layer — swappable for tests.
type PageExtractor interface {
	ExtractPages(data []byte) (pages []PageText, valid bool, err error)
}

// PageText is one page's text content.
type PageText struct {
	PageNumber int
	Text       string
}

// windowChunker implements PDFProcessor by delegating raw extraction to a
// PageExtractor and windowing each page's text independently, restarting
// chunk_id per page and never crossing a page boundary. Token counts are
// logged via tiktoken purely as telemetry; the window boundaries
// themselves are character-based per spec.
type windowChunker struct {
	extractor  PageExtractor
	windowSize int
	overlap    int
	logger     *slog.Logger
	encoder    *tiktoken.Tiktoken
}

// NewPDFProcessor builds the PDFProcessor with a char window clamped to
// [300,500] and the given overlap (default 100 when <= 0).
func NewPDFProcessor(extractor PageExtractor, windowSize, overlap int, logger *slog.Logger) PDFProcessor {
	if windowSize < minWindowSize {
		windowSize = minWindowSize
	}
	if windowSize > maxWindowSize {
		windowSize = maxWindowSize
	}
	if overlap <= 0 {
		overlap = defaultOverlap
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &windowChunker{
		extractor:  extractor,
		windowSize: windowSize,
		overlap:    overlap,
		logger:     logger,
		encoder:    enc,
	}
}

func (w *windowChunker) Process(_ context.Context, data []byte, filename string) ([]ChunkMetadata, int, ExtractionStatus, error) {
	pages, valid, err := w.extractor.ExtractPages(data)
	if err != nil {
		return nil, 0, ExtractionInvalidDoc, newExtractionError(filename, err)
	}
	if !valid {
		return nil, 0, ExtractionInvalidDoc, newExtractionError(filename, errInvalidPDF)
	}

	var chunks []ChunkMetadata
	nonEmptyPages := 0
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		nonEmptyPages++
		pageChunks := w.windowPage(text, filename, page.PageNumber)
		chunks = append(chunks, pageChunks...)
	}

	status := ExtractionOK
	if nonEmptyPages == 0 {
		status = ExtractionNoTextFound
	}
	if w.logger != nil {
		w.logger.Info("pdf processed",
			"filename", filename,
			"pages", len(pages),
			"chunks", len(chunks),
			"status", string(status),
			"tokens", w.estimateTokens(chunks))
	}
	return chunks, len(pages), status, nil
}

func (w *windowChunker) windowPage(text, filename string, pageNumber int) []ChunkMetadata {
	runes := []rune(text)
	var out []ChunkMetadata
	chunkID := 0
	start := 0
	for start < len(runes) {
		end := start + w.windowSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, ChunkMetadata{
				Text:       piece,
				Filename:   filename,
				PageNumber: pageNumber,
				ChunkID:    chunkID,
			})
			chunkID++
		}
		start += w.windowSize - w.overlap
	}
	return out
}

func (w *windowChunker) estimateTokens(chunks []ChunkMetadata) int {
	if w.encoder == nil {
		total := 0
		for _, c := range chunks {
			total += utf8.RuneCountInString(c.Text) / 4
		}
		return total
	}
	total := 0
	for _, c := range chunks {
		total += len(w.encoder.Encode(c.Text, nil, nil))
	}
	return total
}
