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
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rag_chat/internal/app"
	"rag_chat/internal/config"
	"rag_chat/internal/logger"
	"rag_chat/internal/shared"
)

type options struct {
	ConfigPath string
	DataDir    string
	IndexDir   string
	Backend    string
	Force      bool
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

	// Контекст с сигналами завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, lg)
	if err != nil {
		lg.Fatal("failed to create app", zap.Error(err))
	}

	report, err := a.BuildIndex(ctx, opts.Force)
	if err != nil {
		if errors.Is(err, shared.ErrNoDocuments) {
			lg.Error("no documents to index", zap.String("data_dir", cfg.DataDir))
		}
		lg.Fatal("index build failed", zap.Error(err), zap.Strings("chunk_ids", shared.ChunkIDs(err)))
	}

	if report.Skipped {
		fmt.Printf("Index in %s is up to date (%d documents). Use -force to rebuild.\n", cfg.IndexDir, report.Documents)
		return
	}
	fmt.Printf("Indexed %d documents into %d chunks (dimension %d) in %s.\n",
		report.Documents, report.Entries, report.Dimension, report.Took.Round(time.Millisecond))
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.SetOutput(os.Stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config (defaults to $RAG_CONFIG)")
	fs.StringVar(&opts.DataDir, "data", "", "Directory with .txt/.md/.pdf documents (overrides DATA_DIR)")
	fs.StringVar(&opts.IndexDir, "index", "", "Directory to write the index to (overrides INDEX_DIR)")
	fs.StringVar(&opts.Backend, "backend", "", "Index backend: memory or chromem (overrides INDEX_BACKEND)")
	fs.BoolVar(&opts.Force, "force", false, "Rebuild even if documents and settings are unchanged")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rag_index [flags]\n\nBuilds the vector index from the data directory.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.IndexDir != "" {
		cfg.IndexDir = opts.IndexDir
	}
	if opts.Backend != "" {
		cfg.IndexBackend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
