package main

import (
	"context"
	"log"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/chunker"
	"github.com/civicgrid/veridoc/internal/config"
	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/index"
	"github.com/civicgrid/veridoc/internal/indexer"
)

func main() {
	fs := pflag.NewFlagSet("veridoc-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	if cfg.DocumentsDir == "" {
		log.Fatal("documents directory must be set")
	}
	if _, err := os.Stat(cfg.DocumentsDir); err != nil {
		log.Fatalf("documents directory %s: %v", cfg.DocumentsDir, err)
	}

	router := ai.BuildChain(cfg.ChainSettings(), logger)

	dim := router.Dim()
	if cfg.Dim > 0 {
		dim = cfg.Dim
	}
	if dim == 0 {
		log.Fatal("embedding dimension must be set")
	}
	logger.Info().Str("provider", router.Name()).Int("embedding_dim", dim).Msg("provider chain initialized")

	ctx := context.Background()

	var (
		idx  index.Index
		docs docstore.Store
	)
	if cfg.Database != "" {
		pg, err := index.NewPGStore(ctx, cfg.Database, dim)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		if err := pg.Create(ctx); err != nil {
			log.Fatal(err)
		}
		pgDocs := docstore.NewPG(pg.Pool())
		if err := pgDocs.Migrate(ctx); err != nil {
			log.Fatal(err)
		}
		idx, docs = pg, pgDocs
	} else {
		log.Fatal("a database is required for ingestion; set VERIDOC_DB_URL")
	}

	ix := indexer.New(idx, docs, router, chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), cfg.DocumentsDir)
	if err := ix.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
