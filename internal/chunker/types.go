package chunker

import (
	"rag_chat/internal/shared"
)

// Chunk представляет единицу текста для векторизации
type Chunk struct {
	ID     string // Стабильный идентификатор (hash от source и start)
	Source string // ID исходного документа
	Index  int    // Порядковый номер чанка внутри документа
	Start  int    // Смещение начала в рунах
	End    int    // Смещение конца в рунах (не включительно)
	Text   string // Текст чанка
}

// Len длина чанка в рунах
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Chunker - интерфейс для всех типов chunker'ов
type Chunker interface {
	// Chunk разбивает контент на чанки
	Chunk(content, source string) ([]Chunk, error)

	// Name возвращает название chunker'а для логирования
	Name() string
}

// Config содержит параметры окна
type Config struct {
	MaxChunkSize int // Максимальный размер чанка в символах (рунах)
	Overlap      int // Размер overlap между чанками
}

// Validate проверяет 0 <= Overlap < MaxChunkSize
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return shared.Errorf(shared.KindConfiguration, "chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return shared.Errorf(shared.KindConfiguration, "chunk overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return shared.Errorf(shared.KindConfiguration, "chunk overlap %d must be less than chunk size %d", c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Stride шаг между началами соседних окон
func (c Config) Stride() int {
	return c.MaxChunkSize - c.Overlap
}
