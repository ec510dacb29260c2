package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rag_chat/internal/builder"
	"rag_chat/internal/chunker"
	"rag_chat/internal/composer"
	"rag_chat/internal/document"
	"rag_chat/internal/embedding/local"
	"rag_chat/internal/generation"
	"rag_chat/internal/index"
	"rag_chat/internal/retriever"
	"rag_chat/internal/shared"
)

type echoGenerator struct {
	calls int
	fail  map[int]error
}

func (g *echoGenerator) Generate(_ context.Context, p generation.Prompt) (string, error) {
	g.calls++
	if err := g.fail[g.calls]; err != nil {
		return "", err
	}
	if strings.Contains(p.User, "The sky is blue.") {
		return "The sky is blue.", nil
	}
	return composer.CannotAnswer, nil
}

func newSession(t *testing.T, gen generation.Provider) *Session {
	t.Helper()
	ctx := context.Background()

	emb := local.NewVocabulary([]string{"sky", "blue", "grass", "green", "color", "what", "the", "is"})
	b, err := builder.New(emb, builder.MemoryStore, builder.Config{
		Chunk: chunker.Config{MaxChunkSize: 1000, Overlap: 200},
	}, zap.NewNop())
	require.NoError(t, err)

	store, err := b.Build(ctx, []document.Document{
		{ID: "texts/sky.txt", Content: "The sky is blue."},
		{ID: "grass.txt", Content: "Grass is green."},
	})
	require.NoError(t, err)

	r := retriever.New(emb, store, retriever.Config{TopK: 1, MinSimilarity: -1}, zap.NewNop())
	return New(r, composer.New(gen, composer.Config{}, zap.NewNop()), zap.NewNop())
}

func TestAskAppendsTurn(t *testing.T) {
	t.Parallel()

	s := newSession(t, &echoGenerator{})
	assert.NotEmpty(t, s.ID)

	turn, err := s.Ask(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", turn.Answer)
	assert.Equal(t, []string{"texts/sky.txt"}, turn.Sources)
	require.Len(t, turn.Results, 1)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "What color is the sky?", history[0].Query)
}

func TestAskFailureKeepsHistory(t *testing.T) {
	t.Parallel()

	gen := &echoGenerator{fail: map[int]error{1: shared.NewProviderError("stub", "generate", 500, errors.New("down"))}}
	s := newSession(t, gen)

	_, err := s.Ask(context.Background(), "What color is the sky?")
	assert.True(t, errors.Is(err, shared.ErrGeneration))
	assert.Empty(t, s.History())
}

func TestRunLoop(t *testing.T) {
	t.Parallel()

	gen := &echoGenerator{fail: map[int]error{2: shared.NewProviderError("stub", "generate", 503, errors.New("busy"))}}
	s := newSession(t, gen)

	in := strings.NewReader("What color is the sky?\n\n   \nwhat is green grass\nWhat is the sky?\nQUIT\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), in, &out))

	text := out.String()
	assert.Contains(t, text, "The sky is blue.")
	assert.Contains(t, text, "Sources: sky.txt")
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "Bye!")
	assert.NotContains(t, text, "never asked")

	// пустые строки не вызывают модель, ошибочный вопрос не попадает в историю
	assert.Equal(t, 3, gen.calls)
	assert.Len(t, s.History(), 2)
}

func TestRunEndsOnEOF(t *testing.T) {
	t.Parallel()

	s := newSession(t, &echoGenerator{})
	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), strings.NewReader("What color is the sky?"), &out))
	assert.Len(t, s.History(), 1)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	gen := &echoGenerator{}
	s := newSession(t, gen)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, s.Run(ctx, strings.NewReader("What color is the sky?\n"), &out))
	assert.Zero(t, gen.calls)
}

func TestRunEmptyIndexReportsAndContinues(t *testing.T) {
	t.Parallel()

	emb := local.NewHashed(16)
	r := retriever.New(emb, index.New(), retriever.Config{}, nil)
	s := New(r, composer.New(&echoGenerator{}, composer.Config{}, nil), nil)

	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), strings.NewReader("first\nsecond\nexit\n"), &out))
	assert.Equal(t, 2, strings.Count(out.String(), "Error: "))
	assert.Contains(t, out.String(), "empty")
}

func TestIsExit(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"quit", "EXIT", " Quit ", "終了", "やめる"} {
		assert.True(t, IsExit(w), w)
	}
	for _, w := range []string{"", "quitting", "what is exit?"} {
		assert.False(t, IsExit(w), w)
	}
}

func TestSourceNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"c.md", "a.txt"}, SourceNames([]string{"notes/c.md", "a.txt", "other/c.md"}))
	assert.Nil(t, SourceNames(nil))
}
