package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// FileSnapshotter persists the index as a flat little-endian float32
// binary blob (<path>.vectors, header: count, dimension) alongside a
// JSON metadata sibling (<path>.meta.json). Both are written via
// temp-file + rename so a crash mid-write never leaves a partial file
// visible to the next Load.
type FileSnapshotter struct {
	VectorsPath string
	MetaPath    string
}

// NewFileSnapshotter derives the two sibling paths from one base path.
func NewFileSnapshotter(basePath string) *FileSnapshotter {
	return &FileSnapshotter{
		VectorsPath: basePath + ".vectors",
		MetaPath:    basePath + ".meta.json",
	}
}

func (f *FileSnapshotter) Save(vectors [][]float32, metadata []rag.ChunkMetadata) error {
	if err := writeAtomic(f.VectorsPath, encodeVectors(vectors)); err != nil {
		return fmt.Errorf("write vectors snapshot: %w", err)
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata snapshot: %w", err)
	}
	if err := writeAtomic(f.MetaPath, metaBytes); err != nil {
		return fmt.Errorf("write metadata snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotter) Load() ([][]float32, []rag.ChunkMetadata, bool, error) {
	_, vecErr := os.Stat(f.VectorsPath)
	_, metaErr := os.Stat(f.MetaPath)
	if os.IsNotExist(vecErr) || os.IsNotExist(metaErr) {
		return nil, nil, false, nil
	}

	vecBytes, err := os.ReadFile(f.VectorsPath)
	if err != nil {
		return nil, nil, false, err
	}
	metaBytes, err := os.ReadFile(f.MetaPath)
	if err != nil {
		return nil, nil, false, err
	}

	var metadata []rag.ChunkMetadata
	if err := json.Unmarshal(metaBytes, &metadata); err != nil {
		return nil, nil, false, fmt.Errorf("parse metadata snapshot: %w", err)
	}
	vectors, err := decodeVectors(vecBytes)
	if err != nil {
		return nil, nil, false, fmt.Errorf("parse vectors snapshot: %w", err)
	}
	if len(vectors) != len(metadata) {
		return nil, nil, false, fmt.Errorf("snapshot inconsistent: %d vectors, %d metadata entries", len(vectors), len(metadata))
	}
	return vectors, metadata, true, nil
}

// encodeVectors writes a header (count uint64, dimension uint64) then
// count*dimension little-endian float32 values, row-major by chunk index.
func encodeVectors(vectors [][]float32) []byte {
	count := len(vectors)
	dim := 0
	if count > 0 {
		dim = len(vectors[0])
	}
	buf := make([]byte, 16+count*dim*4)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(count))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(dim))
	offset := 16
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(x))
			offset += 4
		}
	}
	return buf
}

func decodeVectors(data []byte) ([][]float32, error) {
	if len(data) < 16 {
		if len(data) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("truncated header")
	}
	count := int(binary.LittleEndian.Uint64(data[0:8]))
	dim := int(binary.LittleEndian.Uint64(data[8:16]))
	want := 16 + count*dim*4
	if len(data) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d", want, len(data))
	}
	vectors := make([][]float32, count)
	offset := 16
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		for j := 0; j < dim; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
