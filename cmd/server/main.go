package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/api"
	"github.com/course-search/backend/internal/catalog"
	"github.com/course-search/backend/internal/config"
	"github.com/course-search/backend/internal/engine"
	"github.com/course-search/backend/internal/logging"
	"github.com/course-search/backend/internal/metrics"
	"github.com/course-search/backend/internal/storage"
)

func main() {
	configPath := flag.String("config", config.GetStringEnv("CONFIG_PATH", ""), "path to YAML config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	// 2. Logging
	entry := logging.New(cfg.Logging, "course-search-api")
	entry.Info("Starting Course Search API Service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Course store
	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		entry.Fatalf("Failed to open course store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		entry.Fatalf("Failed to prepare course store: %v", err)
	}
	if cfg.Store.CatalogFile != "" {
		cat, err := storage.LoadCatalogFile(cfg.Store.CatalogFile)
		if err != nil {
			entry.Fatalf("Failed to load catalog: %v", err)
		}
		if err := store.ImportCatalog(ctx, cat); err != nil {
			entry.Fatalf("Failed to import catalog: %v", err)
		}
		entry.WithField("courses", len(cat.Courses)).Info("Imported catalog")
	}

	// 4. Course map
	courses, err := catalog.LoadCourseMapFile(cfg.Crawl.CourseMapFile)
	if errors.Is(err, os.ErrNotExist) {
		entry.WithField("path", cfg.Crawl.CourseMapFile).Warn("No course map, crawls will index nothing")
		courses = catalog.CourseMap{}
	} else if err != nil {
		entry.Fatalf("Failed to load course map: %v", err)
	}

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 6. Engine
	eng, err := engine.NewEngine(cfg, entry, store, courses, m)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}
	if n, err := eng.LoadIndexFile(ctx, cfg.Crawl.IndexFile); err != nil {
		entry.Fatalf("Failed to load index file: %v", err)
	} else if n > 0 {
		entry.WithField("rows", n).Info("Pre-loaded index into course store")
	}

	// 7. API Server
	server := api.NewServer(eng, entry, reg)
	if err := server.Start(ctx, cfg.Server.Addr); err != nil {
		entry.Fatal(err)
	}
	entry.Info("Course Search API stopped")
}
