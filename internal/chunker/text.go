package chunker

// TextChunker разбивает plain text окнами фиксированного размера с overlap
type TextChunker struct {
	config Config
}

// NewTextChunker создаёт chunker, проверяя параметры окна
func NewTextChunker(config Config) (*TextChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TextChunker{config: config}, nil
}

func (s *TextChunker) Name() string {
	return "window"
}

// Config возвращает параметры окна
func (s *TextChunker) Config() Config {
	return s.config
}

func (s *TextChunker) Chunk(content, source string) ([]Chunk, error) {
	return s.chunkBySize(content, source), nil
}

// Split разбивает текст без создания chunker'а
func Split(content, source string, config Config) ([]Chunk, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return (&TextChunker{config: config}).chunkBySize(content, source), nil
}

// chunkBySize разбиение по размеру с overlap, последнее окно может быть короче
func (s *TextChunker) chunkBySize(content, source string) []Chunk {
	var chunks []Chunk
	runes := []rune(content)

	for i := 0; i < len(runes); i += s.config.Stride() {
		end := i + s.config.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, CreateChunk(string(runes[i:end]), source, len(chunks), i, end))

		if end >= len(runes) {
			break
		}
	}

	return chunks
}
