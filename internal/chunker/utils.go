package chunker

import (
	"crypto/sha256"
	"fmt"
)

// CreateChunk создаёт чанк с детерминированным ID
func CreateChunk(text, source string, index, start, end int) Chunk {
	return Chunk{
		ID:     ChunkID(source, start),
		Source: source,
		Index:  index,
		Start:  start,
		End:    end,
		Text:   text,
	}
}

// ChunkID hash от документа и позиции: одинаковый вход даёт одинаковые ID
func ChunkID(source string, start int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", source, start)))
	return fmt.Sprintf("%x", hash[:8])
}

// Contains true, если диапазон b лежит внутри a того же документа
func Contains(a, b Chunk) bool {
	return a.Source == b.Source && a.Start <= b.Start && b.End <= a.End
}

// GetLastNChars возвращает последние N символов строки
func GetLastNChars(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
