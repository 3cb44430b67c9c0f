// Command indexer crawls the course catalog once, writes the index file and,
// unless -no-store is given, loads the index into the course store.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/catalog"
	"github.com/course-search/backend/internal/config"
	"github.com/course-search/backend/internal/engine"
	"github.com/course-search/backend/internal/logging"
	"github.com/course-search/backend/internal/storage"
)

func main() {
	configPath := flag.String("config", config.GetStringEnv("CONFIG_PATH", ""), "path to YAML config file")
	maxPages := flag.Int("max-pages", -1, "page budget, overrides crawl.max_pages")
	noStore := flag.Bool("no-store", false, "only write the index file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if *maxPages >= 0 {
		cfg.Crawl.MaxPages = *maxPages
	}

	entry := logging.New(cfg.Logging, "course-search-indexer")
	if err := run(cfg, entry, !*noStore); err != nil {
		entry.WithError(err).Fatal("Indexing failed")
	}
}

func run(cfg *config.Config, entry *logrus.Entry, useStore bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	courses, err := catalog.LoadCourseMapFile(cfg.Crawl.CourseMapFile)
	if err != nil {
		return err
	}

	var store *storage.Store
	if useStore {
		store, err = storage.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	eng, err := engine.NewEngine(cfg, entry, store, courses, nil)
	if err != nil {
		return err
	}

	_, stats, err := eng.Crawl(ctx, cfg.Crawl.MaxPages)
	if err != nil {
		return err
	}

	entry.WithFields(logrus.Fields{
		"pages_visited": stats.PagesVisited,
		"words":         stats.Words,
		"pairs":         stats.Pairs,
		"index_file":    cfg.Crawl.IndexFile,
	}).Info("Indexing complete")
	return nil
}
