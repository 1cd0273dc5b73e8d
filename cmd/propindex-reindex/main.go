package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/index"
	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/config"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/store"
	"github.com/TheEntropyCollective/propindex/pkg/util"
	"golang.org/x/text/language"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path (default: built-in defaults plus environment)")
		mode       = flag.String("mode", "swap", "Reindex mode: swap (rebuild shadow and promote), inplace, subtree")
		subtree    = flag.String("subtree", "", "Subtree URI for -mode subtree")
		timeout    = flag.Duration("timeout", 4*time.Hour, "Overall run timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail(err)
	}

	level, err := logging.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		fail(err)
	}
	logging.InitGlobalLogger(&logging.Config{Level: level, Format: logging.TextFormat, Output: os.Stderr})
	logger := logging.GetGlobalLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	typeTree, err := loadTypeTree(cfg.Index.TypesFile, logger)
	if err != nil {
		fail(err)
	}

	db, err := store.NewDatabase(ctx, &store.DatabaseConfig{
		ConnectionString: cfg.Store.URL,
		MaxConnections:   int32(cfg.Store.MaxConnections),
		ConnectTimeout:   time.Duration(cfg.Store.ConnectTimeout) * time.Second,
		FetchSize:        cfg.Store.IterateFetchSize,
	}, logger)
	if err != nil {
		fail(err)
	}
	defer db.Close()
	if cfg.Store.MigrateOnStart {
		if err := db.MigrateToLatest(ctx); err != nil {
			fail(err)
		}
	}

	tag, err := language.Parse(cfg.Index.Locale)
	if err != nil {
		fail(fmt.Errorf("invalid locale %q: %w", cfg.Index.Locale, err))
	}
	collation := mapping.NewCollation(tag)
	mapper := mapping.NewDocumentMapper(typeTree, collation, nil, logger)

	manager, err := index.NewManager(index.ManagerOptions{
		PrimaryPath:   cfg.Index.PrimaryPath(),
		SecondaryPath: cfg.Index.SecondaryPath(),
		Mapper:        mapper,
		LockTimeout:   cfg.Index.LockTimeout(),
		BatchSize:     cfg.Index.BatchSize,
		Logger:        logger,
	})
	if err != nil {
		fail(err)
	}
	defer manager.Close()

	reindexer, err := index.NewReindexer(index.ReindexerOptions{
		Manager:   manager,
		Accessor:  store.NewContentStore(db, typeTree),
		Workers:   cfg.Index.ReindexWorkers,
		BatchSize: cfg.Index.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		fail(err)
	}

	var stats *index.ReindexStats
	switch *mode {
	case "swap":
		stats, err = reindexer.Run(ctx, index.ModeRebuildAndSwap)
	case "inplace":
		stats, err = reindexer.Run(ctx, index.ModeRebuildInPlace)
	case "subtree":
		if *subtree == "" {
			fail(fmt.Errorf("-mode subtree requires -subtree"))
		}
		var prefix repository.Path
		prefix, err = repository.ParsePath(*subtree)
		if err == nil {
			stats, err = reindexer.RunSubtree(ctx, prefix)
		}
	default:
		fail(fmt.Errorf("unknown mode %q", *mode))
	}
	if err != nil {
		fail(err)
	}

	fmt.Printf("Reindex %s finished: %d documents in %s\n", stats.Mode, stats.Documents, stats.Duration.Round(time.Millisecond))
}

// loadTypeTree reads the configured resource type definitions. Without
// them every user property would be dropped from the rebuilt index, so
// running definition-less is a loud warning, not a silent default.
func loadTypeTree(path string, logger *logging.Logger) (*repository.StaticTypeTree, error) {
	if path == "" {
		logger.Warnf("no resource type definitions configured; only envelope and ACL fields will be indexed")
		return repository.NewStaticTypeTree(), nil
	}
	return repository.LoadStaticTypeTree(path)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, util.FormatError(err))
	os.Exit(1)
}
