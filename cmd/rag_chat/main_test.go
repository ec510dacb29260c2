package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chat/internal/config"
)

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("rag_chat", flag.ContinueOnError)
	opts, err := parseFlags(fs, []string{"-index", "vdb", "-k", "5", "-tui"})
	require.NoError(t, err)
	assert.Equal(t, options{IndexDir: "vdb", TopK: 5, TUI: true}, opts)
}

func TestParseFlagsRejectsNegativeK(t *testing.T) {
	fs := flag.NewFlagSet("rag_chat", flag.ContinueOnError)
	_, err := parseFlags(fs, []string{"-k", "-1"})
	assert.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("TOP_K", "")

	cfg, err := loadConfig(options{IndexDir: "vdb", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, "vdb", cfg.IndexDir)
	assert.Equal(t, 5, cfg.TopK)

	cfg, err = loadConfig(options{})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.TopK)
}
