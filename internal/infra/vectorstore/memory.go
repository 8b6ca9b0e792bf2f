// Package vectorstore implements an in-memory dense vector index with a
// parallel metadata list and a per-file lookup map, guarded by a
// reader-writer lock: Search/GetAdjacent/GetStats read under RLock,
// Add/Delete*/ClearAll rebuild under Lock and copy-on-write swap the
// index before releasing it.
package vectorstore

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

var tempFilePattern = regexp.MustCompile(`(?i)^tmp[a-z0-9_]+\.pdf$`)

// state is the single owning structure coupling vectors to metadata so
// downstream code can never index into one without the other.
type state struct {
	vectors    [][]float32
	metadata   []rag.ChunkMetadata
	byFile     map[string][]int // filename -> indices into vectors/metadata, sorted by (page, chunkID)
}

func newState() *state {
	return &state{byFile: make(map[string][]int)}
}

// Store is the VectorStore implementation.
type Store struct {
	mu       sync.RWMutex
	st       *state
	embedder rag.Embedder
	snapshot Snapshotter
	logger   *slog.Logger
}

// Snapshotter persists and reloads the index to/from disk. It is a
// narrow seam so tests can run without touching a filesystem.
type Snapshotter interface {
	Save(vectors [][]float32, metadata []rag.ChunkMetadata) error
	Load() (vectors [][]float32, metadata []rag.ChunkMetadata, ok bool, err error)
}

// New constructs a Store, loading any existing snapshot. A load failure
// falls back to a fresh empty index and is logged, never fatal.
func New(embedder rag.Embedder, snapshot Snapshotter, logger *slog.Logger) *Store {
	s := &Store{st: newState(), embedder: embedder, snapshot: snapshot, logger: logger}
	if snapshot == nil {
		return s
	}
	vectors, metadata, ok, err := snapshot.Load()
	if err != nil {
		if logger != nil {
			logger.Warn("vector store snapshot load failed, starting empty", "error", err)
		}
		return s
	}
	if ok {
		s.st = buildState(vectors, metadata)
	}
	return s
}

func buildState(vectors [][]float32, metadata []rag.ChunkMetadata) *state {
	st := newState()
	st.vectors = vectors
	st.metadata = metadata
	st.byFile = buildFileIndex(metadata)
	return st
}

func buildFileIndex(metadata []rag.ChunkMetadata) map[string][]int {
	byFile := make(map[string][]int)
	for i, m := range metadata {
		byFile[m.Filename] = append(byFile[m.Filename], i)
	}
	for filename, idxs := range byFile {
		sorted := append([]int(nil), idxs...)
		sort.Slice(sorted, func(a, b int) bool {
			ma, mb := metadata[sorted[a]], metadata[sorted[b]]
			if ma.PageNumber != mb.PageNumber {
				return ma.PageNumber < mb.PageNumber
			}
			return ma.ChunkID < mb.ChunkID
		})
		byFile[filename] = sorted
	}
	return byFile
}

// Add encodes texts, appends vectors and metadata, rebuilds the per-file
// index, then snapshots. All-or-nothing: a mid-call failure leaves the
// prior state untouched because the texts are encoded before the lock is
// taken and the new state is swapped in only after the snapshot succeeds.
func (s *Store) Add(ctx context.Context, chunks []rag.ChunkMetadata) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Encode(ctx, texts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newVectors := append(append([][]float32(nil), s.st.vectors...), vectors...)
	newMetadata := append(append([]rag.ChunkMetadata(nil), s.st.metadata...), chunks...)
	next := buildState(newVectors, newMetadata)

	if err := s.persist(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

// Search embeds the query, walks candidates in ascending L2 distance,
// and applies filename/user filters, stopping once topK are kept.
func (s *Store) Search(ctx context.Context, query string, topK int, filenameFilter, userFilter string) ([]rag.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.st.vectors) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vecs[0]

	searchK := topK
	if filenameFilter != "" || userFilter != "" {
		searchK = topK * 3
	}
	if searchK > len(s.st.vectors) {
		searchK = len(s.st.vectors)
	}

	type candidate struct {
		idx      int
		distance float64
	}
	candidates := make([]candidate, len(s.st.vectors))
	for i, v := range s.st.vectors {
		candidates[i] = candidate{idx: i, distance: l2Distance(queryVec, v)}
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].distance < candidates[b].distance })
	if len(candidates) > searchK {
		candidates = candidates[:searchK]
	}

	results := make([]rag.SearchResult, 0, topK)
	for _, c := range candidates {
		meta := s.st.metadata[c.idx]
		if filenameFilter != "" && meta.Filename != filenameFilter {
			continue
		}
		if userFilter != "" && meta.UserID != userFilter {
			continue
		}
		results = append(results, rag.SearchResult{ChunkMetadata: meta, Distance: c.distance})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

// GetAdjacent expands seeds with same-file chunks of the seed's owner
// within pageRange pages, deduplicated and sorted by (filename, page,
// chunkID).
func (s *Store) GetAdjacent(_ context.Context, seeds []rag.SearchResult, pageRange int) ([]rag.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(seeds) == 0 {
		return nil, nil
	}

	type key struct {
		filename string
		page     int
		chunkID  int
	}
	seen := make(map[key]bool)
	out := make([]rag.SearchResult, 0, len(seeds))

	add := func(r rag.SearchResult) {
		k := key{r.Filename, r.PageNumber, r.ChunkID}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, r)
	}

	for _, seed := range seeds {
		add(seed)
	}
	for _, seed := range seeds {
		idxs := s.st.byFile[seed.Filename]
		for _, idx := range idxs {
			meta := s.st.metadata[idx]
			if meta.UserID != seed.UserID || meta.PageNumber == seed.PageNumber {
				continue
			}
			if abs(meta.PageNumber-seed.PageNumber) <= pageRange {
				add(rag.SearchResult{ChunkMetadata: meta})
			}
		}
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Filename != out[b].Filename {
			return out[a].Filename < out[b].Filename
		}
		if out[a].PageNumber != out[b].PageNumber {
			return out[a].PageNumber < out[b].PageNumber
		}
		return out[a].ChunkID < out[b].ChunkID
	})
	return out, nil
}

// DeleteByFilename partitions metadata into keep/drop, re-encodes the
// kept texts and rebuilds the index from scratch (no tombstones).
func (s *Store) DeleteByFilename(ctx context.Context, filename, userFilter string) error {
	return s.rebuildExcluding(ctx, func(m rag.ChunkMetadata) bool {
		if userFilter != "" {
			return m.Filename == filename && m.UserID == userFilter
		}
		return m.Filename == filename
	})
}

// DeleteTempFilesByUser drops a user's temp-named chunks, plus (when
// validFilenames is non-nil) any of that user's chunks whose filename is
// not in the valid set.
func (s *Store) DeleteTempFilesByUser(ctx context.Context, userID string, validFilenames []string) error {
	var validSet map[string]bool
	if validFilenames != nil {
		validSet = make(map[string]bool, len(validFilenames))
		for _, f := range validFilenames {
			validSet[f] = true
		}
	}
	return s.rebuildExcluding(ctx, func(m rag.ChunkMetadata) bool {
		if m.UserID != userID {
			return false
		}
		if tempFilePattern.MatchString(m.Filename) {
			return true
		}
		if validSet != nil && !validSet[m.Filename] {
			return true
		}
		return false
	})
}

// rebuildExcluding drops metadata matching shouldDrop, re-encodes the
// surviving texts, and swaps in the rebuilt state. A no-op when nothing
// matches.
func (s *Store) rebuildExcluding(ctx context.Context, shouldDrop func(rag.ChunkMetadata) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make([]rag.ChunkMetadata, 0, len(s.st.metadata))
	for _, m := range s.st.metadata {
		if !shouldDrop(m) {
			keep = append(keep, m)
		}
	}
	if len(keep) == len(s.st.metadata) {
		return nil
	}
	if len(keep) == 0 {
		next := newState()
		if err := s.persist(next); err != nil {
			return err
		}
		s.st = next
		return nil
	}

	texts := make([]string, len(keep))
	for i, m := range keep {
		texts[i] = m.Text
	}
	vectors, err := s.embedder.Encode(ctx, texts)
	if err != nil {
		return err
	}
	next := buildState(vectors, keep)
	if err := s.persist(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

// ClearAll empties the index and snapshots the empty state.
func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := newState()
	if err := s.persist(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

// GetStats summarizes chunk/file counts, optionally scoped to one user.
func (s *Store) GetStats(_ context.Context, userFilter string) (rag.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make(map[string]int)
	total := 0
	for _, m := range s.st.metadata {
		if userFilter != "" && m.UserID != userFilter {
			continue
		}
		files[m.Filename]++
		total++
	}
	return rag.Stats{TotalChunks: total, TotalFiles: len(files), Files: files}, nil
}

// persist must be called with the write lock held. A failure aborts the
// mutation; the caller's state pointer is left unchanged.
func (s *Store) persist(next *state) error {
	if s.snapshot == nil {
		return nil
	}
	if err := s.snapshot.Save(next.vectors, next.metadata); err != nil {
		if s.logger != nil {
			s.logger.Error("vector store snapshot save failed", "error", err)
		}
		return err
	}
	return nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

var _ rag.VectorStore = (*Store)(nil)
