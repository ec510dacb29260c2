package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rag_chat/internal/app"
	"rag_chat/internal/config"
	"rag_chat/internal/logger"
	"rag_chat/internal/shared"
)

type options struct {
	ConfigPath string
	IndexDir   string
	TopK       int
	TUI        bool
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	// Загружаем .env (опционально)
	_ = godotenv.Load()

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, lg)
	if err != nil {
		lg.Fatal("failed to create app", zap.Error(err))
	}

	if err := a.Chat(ctx, os.Stdin, os.Stdout, opts.TUI); err != nil {
		if errors.Is(err, shared.ErrIndexNotFound) {
			fmt.Fprintf(os.Stderr, "Index not found in %s. Run rag_index first.\n", cfg.IndexDir)
			os.Exit(1)
		}
		lg.Fatal("chat stopped with error", zap.Error(err))
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.SetOutput(os.Stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config (defaults to $RAG_CONFIG)")
	fs.StringVar(&opts.IndexDir, "index", "", "Directory with the built index (overrides INDEX_DIR)")
	fs.IntVar(&opts.TopK, "k", 0, "Chunks retrieved per question (overrides TOP_K)")
	fs.BoolVar(&opts.TUI, "tui", false, "Use the full-screen terminal interface")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rag_chat [flags]\n\nAnswers questions about the indexed documents.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.TopK < 0 {
		return options{}, fmt.Errorf("-k must be positive")
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.IndexDir != "" {
		cfg.IndexDir = opts.IndexDir
	}
	if opts.TopK > 0 {
		cfg.TopK = opts.TopK
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
