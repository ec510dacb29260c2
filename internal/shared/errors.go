package shared

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind категория ошибки пайплайна
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindProvider          ErrorKind = "provider"
	KindEmbedding         ErrorKind = "embedding"
	KindGeneration        ErrorKind = "generation"
	KindDimensionMismatch ErrorKind = "dimension_mismatch"
	KindCorruptIndex      ErrorKind = "corrupt_index"
	KindIndexNotFound     ErrorKind = "index_not_found"
	KindEmptyIndex        ErrorKind = "empty_index"
	KindNoDocuments       ErrorKind = "no_documents"
)

// Error структурированная ошибка с категорией и контекстом
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error

	// ChunkIDs чанки батча, на котором упал эмбеддинг
	ChunkIDs []string
	// Query текст запроса, если ошибка случилась при поиске
	Query string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.ChunkIDs) > 0 {
		fmt.Fprintf(&b, " (chunks: %s)", strings.Join(e.ChunkIDs, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает только категорию, поэтому errors.Is(err, ErrEmbedding) работает для любой ошибки эмбеддинга
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError создаёт ошибку заданной категории
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errorf создаёт ошибку с форматированным сообщением
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrConfiguration     = NewError(KindConfiguration, "invalid configuration", nil)
	ErrProvider          = NewError(KindProvider, "provider call failed", nil)
	ErrEmbedding         = NewError(KindEmbedding, "embedding failed", nil)
	ErrGeneration        = NewError(KindGeneration, "generation failed", nil)
	ErrDimensionMismatch = NewError(KindDimensionMismatch, "embedding dimension mismatch", nil)
	ErrCorruptIndex      = NewError(KindCorruptIndex, "index is corrupt", nil)
	ErrIndexNotFound     = NewError(KindIndexNotFound, "index not found", nil)
	ErrEmptyIndex        = NewError(KindEmptyIndex, "index is empty", nil)
	ErrNoDocuments       = NewError(KindNoDocuments, "no documents to index", nil)
)

// IsKind проверяет категорию ошибки в цепочке
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// ChunkIDs достаёт идентификаторы чанков из ошибки эмбеддинга
func ChunkIDs(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindEmbedding {
		return e.ChunkIDs
	}
	return nil
}
