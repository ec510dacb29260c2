package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"rag_chat/internal/fileutils"
	"rag_chat/internal/shared"
)

const (
	// FileName имя файла индекса внутри каталога
	FileName      = "index.gob"
	formatVersion = 1
)

type snapshot struct {
	Version   int
	Dimension int
	Entries   []Entry
}

// Path путь к файлу индекса в каталоге location
func Path(location string) string {
	return filepath.Join(location, FileName)
}

// Exists true, если в location уже лежит индекс
func Exists(location string) bool {
	return fileutils.FileExists(Path(location))
}

// Persist сохраняет индекс атомарно: читатель видит либо старый, либо новый файл
func (ix *Index) Persist(location string) error {
	ix.mu.RLock()
	snap := snapshot{Version: formatVersion, Dimension: ix.dimension, Entries: ix.entries}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snap)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := fileutils.WriteFileAtomic(Path(location), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load читает индекс, сохранённый Persist
func Load(location string) (*Index, error) {
	data, err := os.ReadFile(Path(location))
	if err != nil {
		if fileutils.NotExist(err) {
			return nil, shared.NewError(shared.KindIndexNotFound, "no index at "+location, err)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, shared.NewError(shared.KindCorruptIndex, "decode "+Path(location), err)
	}
	if snap.Version != formatVersion {
		return nil, shared.Errorf(shared.KindCorruptIndex, "unsupported index version %d", snap.Version)
	}
	if len(snap.Entries) > 0 && snap.Dimension <= 0 {
		return nil, shared.Errorf(shared.KindCorruptIndex, "index has %d entries but no dimension", len(snap.Entries))
	}

	ix := &Index{
		dimension: snap.Dimension,
		entries:   snap.Entries,
		norms:     make([]float64, len(snap.Entries)),
	}
	for i, e := range snap.Entries {
		if len(e.Embedding) != snap.Dimension {
			return nil, shared.Errorf(shared.KindCorruptIndex,
				"entry %s has dimension %d, index records %d", e.Chunk.ID, len(e.Embedding), snap.Dimension)
		}
		ix.norms[i] = squaredNorm(e.Embedding)
	}
	return ix, nil
}
