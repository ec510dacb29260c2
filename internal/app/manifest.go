package app

import (
	"path/filepath"
	"time"

	"rag_chat/internal/document"
	"rag_chat/internal/fileutils"
	"rag_chat/internal/shared"
)

const ManifestName = "manifest.json"

// Manifest описывает, из чего и с какими настройками собран индекс
type Manifest struct {
	Files             map[string]FileInfo `json:"files"`
	DataPath          string              `json:"data_path"`
	Backend           string              `json:"backend"`
	ChunkSize         int                 `json:"chunk_size"`
	ChunkOverlap      int                 `json:"chunk_overlap"`
	EmbeddingProvider string              `json:"embedding_provider"`
	EmbeddingModel    string              `json:"embedding_model"`
	Entries           int                 `json:"entries"`
	Dimension         int                 `json:"dimension"`
	BuiltAt           time.Time           `json:"built_at"`
}

type FileInfo struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

func manifestPath(indexDir string) string {
	return filepath.Join(indexDir, ManifestName)
}

// LoadManifest читает manifest.json; отсутствие файла не ошибка, возвращается nil
func LoadManifest(indexDir string) (*Manifest, error) {
	var m Manifest
	if err := fileutils.ReadJSONFile(manifestPath(indexDir), &m); err != nil {
		if fileutils.NotExist(err) {
			return nil, nil
		}
		return nil, shared.NewError(shared.KindCorruptIndex, "read manifest", err)
	}
	return &m, nil
}

func (m *Manifest) Save(indexDir string) error {
	return fileutils.WriteJSONFileAtomic(manifestPath(indexDir), m)
}

func filesOf(docs []document.Document) map[string]FileInfo {
	files := make(map[string]FileInfo, len(docs))
	for _, d := range docs {
		files[d.ID] = FileInfo{Path: d.ID, LastModified: d.ModTime, Size: d.Size}
	}
	return files
}

// SameInputs true, если индекс собран из тех же файлов с теми же настройками
func (m *Manifest) SameInputs(other *Manifest) bool {
	if other == nil {
		return false
	}
	if m.DataPath != other.DataPath ||
		m.Backend != other.Backend ||
		m.ChunkSize != other.ChunkSize ||
		m.ChunkOverlap != other.ChunkOverlap ||
		m.EmbeddingProvider != other.EmbeddingProvider ||
		m.EmbeddingModel != other.EmbeddingModel ||
		len(m.Files) != len(other.Files) {
		return false
	}
	for id, fi := range m.Files {
		o, ok := other.Files[id]
		if !ok || o.Size != fi.Size || !o.LastModified.Equal(fi.LastModified) {
			return false
		}
	}
	return true
}
