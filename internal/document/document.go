// Package document читает исходные документы из каталога данных.
package document

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"rag_chat/internal/shared"
)

// Document исходный текст с идентификатором
type Document struct {
	ID      string // путь относительно каталога данных, через "/"
	Path    string
	Content string
	ModTime time.Time
	Size    int64
}

// Supported расширения, которые умеет читать загрузчик
var Supported = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".pdf":      true,
}

// CanProcess проверяет, что файл это .txt, .md или .pdf
func CanProcess(path string) bool {
	return Supported[strings.ToLower(filepath.Ext(path))]
}

// LoadDir читает все поддерживаемые файлы каталога, отсортированные по ID.
// Нечитаемые файлы пропускаются с предупреждением.
func LoadDir(dir string, logger *zap.Logger) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, shared.NewError(shared.KindConfiguration, "data directory "+dir+" is not accessible", err)
	}
	if !info.IsDir() {
		return nil, shared.Errorf(shared.KindConfiguration, "data path %s is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !CanProcess(path) {
			logger.Debug("skipping unsupported file", zap.String("path", path))
			return nil
		}

		doc, err := Load(dir, path)
		if err != nil {
			logger.Warn("failed to read document", zap.String("path", path), zap.Error(err))
			return nil
		}
		logger.Info("📄 document loaded", zap.String("id", doc.ID), zap.Int("runes", len([]rune(doc.Content))))
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Load читает один файл; root нужен для вычисления ID
func Load(root, path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}

	content, err := readContent(path)
	if err != nil {
		return Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	return Document{
		ID:      filepath.ToSlash(rel),
		Path:    path,
		Content: content,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

func readContent(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return MarkdownToText(b), nil
	case ".pdf":
		return PDFToText(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return normalizeNewlines(string(b)), nil
	}
}

func normalizeNewlines(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
