// Package session ведёт диалог вопрос/ответ поверх retriever и composer.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rag_chat/internal/composer"
	"rag_chat/internal/index"
)

// Turn один обмен в рамках сессии
type Turn = composer.Turn

// Retriever ищет чанки для вопроса
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.Result, error)
}

// Composer формирует ответ
type Composer interface {
	Compose(ctx context.Context, query string, results []index.Result, history []composer.Turn) (composer.Answer, error)
}

// exitWords завершают диалог без учёта регистра
var exitWords = map[string]bool{
	"quit": true,
	"exit": true,
	"終了":   true,
	"やめる":  true,
}

// IsExit true для слова завершения
func IsExit(line string) bool {
	return exitWords[strings.ToLower(strings.TrimSpace(line))]
}

// Session хранит историю в памяти, только на время работы процесса.
// Не рассчитана на конкурентные вызовы Ask.
type Session struct {
	ID        string
	retriever Retriever
	composer  Composer
	history   []Turn
	logger    *zap.Logger
}

func New(r Retriever, c Composer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		retriever: r,
		composer:  c,
		logger:    logger.With(zap.String("session_id", id)),
	}
}

// History копия истории сессии
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Ask ищет контекст, генерирует ответ и добавляет обмен в историю.
// При ошибке история не меняется.
func (s *Session) Ask(ctx context.Context, query string) (Turn, error) {
	s.logger.Info("question received", zap.Int("turn", len(s.history)+1), zap.Int("runes", len([]rune(query))))

	results, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		return Turn{}, fmt.Errorf("retrieve: %w", err)
	}

	answer, err := s.composer.Compose(ctx, query, results, s.history)
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{
		Query:   query,
		Results: results,
		Answer:  answer.Text,
		Sources: answer.Sources,
	}
	s.history = append(s.history, turn)

	s.logger.Info("✅ answer ready", zap.Int("results", len(results)), zap.Strings("sources", answer.Sources))
	return turn, nil
}

// Run читает вопросы построчно из in и пишет ответы в out.
// Слово завершения, EOF и отмена контекста завершают цикл без ошибки.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	// Вопросы бывают длинными, поднимаем лимит строки
	const maxLineSize = 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	fmt.Fprintln(out, "Ask a question about your documents. Type 'quit' or 'exit' to leave.")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session cancelled")
			return nil
		default:
		}

		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			s.logger.Info("input closed")
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if IsExit(line) {
			s.logger.Info("session finished", zap.Int("turns", len(s.history)))
			fmt.Fprintln(out, "Bye!")
			return nil
		}

		turn, err := s.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("turn failed", zap.Error(err))
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n", turn.Answer)
		if names := SourceNames(turn.Sources); len(names) > 0 {
			fmt.Fprintf(out, "\nSources: %s\n", strings.Join(names, ", "))
		}
	}
}

// SourceNames имена файлов источников без каталогов, без повторов
func SourceNames(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	var out []string
	for _, src := range sources {
		name := path.Base(src)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
