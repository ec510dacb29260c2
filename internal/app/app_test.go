package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rag_chat/internal/config"
	"rag_chat/internal/embedding/local"
	"rag_chat/internal/generation"
	"rag_chat/internal/shared"
)

var vocab = []string{"sky", "blue", "grass", "green", "color", "what", "the", "is"}

func stubGenerator() generation.Provider {
	return generation.ProviderFunc(func(_ context.Context, p generation.Prompt) (string, error) {
		if strings.Contains(p.User, "The sky is blue.") {
			return "It is blue.", nil
		}
		return "I do not know.", nil
	})
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "sky.txt"), []byte("The sky is blue."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "grass.txt"), []byte("Grass is green."), 0o644))

	cfg := config.Default()
	cfg.DataDir = data
	cfg.IndexDir = filepath.Join(root, "vectordb")
	cfg.IndexBackend = backend
	cfg.Embedding.Provider = "local"
	cfg.TopK = 1
	require.NoError(t, cfg.Validate())
	return &cfg
}

func newApp(t *testing.T, cfg *config.Config, logger *zap.Logger) *App {
	t.Helper()
	a, err := New(cfg, logger, WithEmbedder(local.NewVocabulary(vocab)), WithGenerator(stubGenerator()))
	require.NoError(t, err)
	return a
}

func TestBuildIndexWritesManifestAndSkipsUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t, "memory")
	a := newApp(t, cfg, nil)

	report, err := a.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, len(vocab), report.Dimension)

	m, err := LoadManifest(cfg.IndexDir)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "local-vocabulary", m.EmbeddingModel)
	assert.Contains(t, m.Files, "sky.txt")
	assert.False(t, m.BuiltAt.IsZero())

	report, err = a.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 2, report.Entries)

	report, err = a.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "grass.txt"), []byte("Grass is very green."), 0o644))
	report, err = a.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
}

func TestBuildIndexEmptyDataDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "memory")
	require.NoError(t, os.Remove(filepath.Join(cfg.DataDir, "sky.txt")))
	require.NoError(t, os.Remove(filepath.Join(cfg.DataDir, "grass.txt")))

	_, err := newApp(t, cfg, nil).BuildIndex(context.Background(), false)
	assert.True(t, errors.Is(err, shared.ErrNoDocuments))

	m, err := LoadManifest(cfg.IndexDir)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestChatRequiresIndex(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "memory")
	err := newApp(t, cfg, nil).Chat(context.Background(), strings.NewReader("quit\n"), &bytes.Buffer{}, false)
	assert.True(t, errors.Is(err, shared.ErrIndexNotFound))
}

func TestBuildThenChat(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"memory", "chromem"} {
		backend := backend
		t.Run(backend, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			cfg := testConfig(t, backend)

			_, err := newApp(t, cfg, nil).BuildIndex(ctx, false)
			require.NoError(t, err)

			var out bytes.Buffer
			in := strings.NewReader("What color is the sky?\nexit\n")
			require.NoError(t, newApp(t, cfg, nil).Chat(ctx, in, &out, false))

			assert.Contains(t, out.String(), "It is blue.")
			assert.Contains(t, out.String(), "Sources: sky.txt")
		})
	}
}

func TestNewSessionWarnsOnModelMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t, "memory")

	_, err := newApp(t, cfg, nil).BuildIndex(ctx, false)
	require.NoError(t, err)

	m, err := LoadManifest(cfg.IndexDir)
	require.NoError(t, err)
	m.EmbeddingModel = "text-embedding-3-large"
	require.NoError(t, m.Save(cfg.IndexDir))

	core, logs := observer.New(zapcore.WarnLevel)
	_, _, err = newApp(t, cfg, zap.New(core)).NewSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("different embedding model").Len())
}

func TestNewSessionCorruptIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t, "memory")

	require.NoError(t, os.MkdirAll(cfg.IndexDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.IndexDir, "index.gob"), []byte("garbage"), 0o644))

	_, _, err := newApp(t, cfg, nil).NewSession(ctx)
	assert.True(t, errors.Is(err, shared.ErrCorruptIndex))
}

func TestProviderFactories(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.OpenAIAPIKey = ""

	_, err := NewEmbedder(&cfg)
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
	_, err = NewGenerator(&cfg)
	assert.True(t, errors.Is(err, shared.ErrConfiguration))

	cfg.OpenAIAPIKey = "sk-test"
	emb, err := NewEmbedder(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, emb)

	cfg.Generation.Provider = "responses"
	gen, err := NewGenerator(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"
	emb, err = NewEmbedder(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, emb)

	cfg.Embedding.Provider = "local"
	emb, err = NewEmbedder(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &local.Embedder{}, emb)

	cfg.Embedding.Provider = "cohere"
	_, err = NewEmbedder(&cfg)
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
}
