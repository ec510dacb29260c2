// Package composer собирает промпт из найденных чанков и истории диалога
// и получает ответ от генеративной модели.
package composer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rag_chat/internal/chunker"
	"rag_chat/internal/generation"
	"rag_chat/internal/index"
	"rag_chat/internal/shared"
)

const (
	// NoContextMarker подставляется вместо контекста, если ничего не найдено
	NoContextMarker = "No relevant context found."

	// CannotAnswer фраза, которой модель должна отвечать без достаточного контекста
	CannotAnswer = "The provided information is not sufficient to answer."
)

// SystemInstructions системная часть промпта
var SystemInstructions = "Answer the question accurately and in detail using only the information provided below. " +
	"If the answer cannot be derived from that information, reply: \"" + CannotAnswer + "\""

// Turn один обмен вопрос/ответ сессии
type Turn struct {
	Query   string
	Results []index.Result
	Answer  string
	Sources []string
}

// Answer ответ модели вместе с процитированными источниками
type Answer struct {
	Text    string
	Sources []string
	Prompt  generation.Prompt
}

// Config параметры сборки промпта
type Config struct {
	// HistoryTurns сколько последних обменов попадает в промпт; 0 = без истории
	HistoryTurns int
	// MaxContextChars лимит на суммарную длину чанков в рунах; 0 = без лимита
	MaxContextChars int
	// DedupOverlapping выкидывает чанки, повторяющие уже включённый текст того же документа
	DedupOverlapping bool
}

// Composer строит промпт и вызывает генерацию
type Composer struct {
	generator generation.Provider
	cfg       Config
	logger    *zap.Logger
}

func New(generator generation.Provider, cfg Config, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{generator: generator, cfg: cfg, logger: logger}
}

// Compose собирает промпт, вызывает модель и возвращает ответ с источниками.
// Источники это различные документы чанков, реально попавших в промпт, в порядке ранга.
func (c *Composer) Compose(ctx context.Context, query string, results []index.Result, history []Turn) (Answer, error) {
	included := c.selectContext(results)
	prompt := generation.Prompt{
		System: SystemInstructions,
		User:   c.userPrompt(query, included, history),
	}

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{Prompt: prompt}, &shared.Error{
			Kind:    shared.KindGeneration,
			Message: "generate answer",
			Err:     err,
			Query:   query,
		}
	}

	c.logger.Debug("answer generated",
		zap.Int("context_chunks", len(included)),
		zap.Int("history_turns", len(lastTurns(history, c.cfg.HistoryTurns))),
	)

	return Answer{Text: text, Sources: Sources(included), Prompt: prompt}, nil
}

// selectContext применяет дедупликацию и лимит длины, сохраняя порядок ранга.
// Как только очередной чанк не влезает в лимит, остальные отбрасываются.
func (c *Composer) selectContext(results []index.Result) []index.Result {
	var (
		out  []index.Result
		used int
	)
	for _, r := range results {
		if c.cfg.DedupOverlapping && duplicates(out, r.Chunk) {
			continue
		}
		size := len([]rune(r.Chunk.Text))
		if c.cfg.MaxContextChars > 0 && used+size > c.cfg.MaxContextChars {
			c.logger.Debug("context budget exhausted",
				zap.Int("included", len(out)), zap.Int("dropped", len(results)-len(out)))
			break
		}
		used += size
		out = append(out, r)
	}
	return out
}

func duplicates(included []index.Result, ch chunker.Chunk) bool {
	for _, r := range included {
		if r.Chunk.Source != ch.Source {
			continue
		}
		if r.Chunk.Text == ch.Text || chunker.Contains(r.Chunk, ch) {
			return true
		}
	}
	return false
}

func (c *Composer) userPrompt(query string, included []index.Result, history []Turn) string {
	var buf strings.Builder

	buf.WriteString("Relevant information:\n")
	if len(included) == 0 {
		buf.WriteString(NoContextMarker)
		buf.WriteString("\n\n")
	}
	for i, r := range included {
		buf.WriteString(fmt.Sprintf("%d. [Source: %s] (similarity: %.2f)\n", i+1, r.Chunk.Source, r.Score))
		buf.WriteString("<<<\n")
		buf.WriteString(r.Chunk.Text)
		buf.WriteString("\n>>>\n\n")
	}

	if turns := lastTurns(history, c.cfg.HistoryTurns); len(turns) > 0 {
		buf.WriteString("Conversation so far:\n")
		for _, t := range turns {
			buf.WriteString("Q: ")
			buf.WriteString(t.Query)
			buf.WriteString("\nA: ")
			buf.WriteString(t.Answer)
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	buf.WriteString("Question: ")
	buf.WriteString(query)
	buf.WriteString("\nAnswer:")
	return buf.String()
}

func lastTurns(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// Sources различные документы результатов в порядке первого появления
func Sources(results []index.Result) []string {
	seen := make(map[string]bool, len(results))
	var out []string
	for _, r := range results {
		if seen[r.Chunk.Source] {
			continue
		}
		seen[r.Chunk.Source] = true
		out = append(out, r.Chunk.Source)
	}
	return out
}
