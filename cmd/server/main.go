package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	evbus "github.com/asaskevich/EventBus"

	"github.com/franckalain/mealdose/internal/analysis"
	"github.com/franckalain/mealdose/internal/config"
	"github.com/franckalain/mealdose/internal/database"
	"github.com/franckalain/mealdose/internal/imaging"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/ml"
	"github.com/franckalain/mealdose/internal/pipeline"
	"github.com/franckalain/mealdose/internal/server"
	"github.com/franckalain/mealdose/internal/session"
	"github.com/franckalain/mealdose/internal/translation"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	modelConfigPath := flag.String("config-model", "", "path to the translation model configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *modelConfigPath != "" {
		cfg.ML.ConfigPath = *modelConfigPath
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	if err := run(cfg, logger.Logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize database
	db, err := database.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := session.New(session.Config{
		Driver: cfg.Session.Driver,
		Redis: &session.RedisConfig{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			Prefix:   cfg.Session.Redis.Prefix,
		},
	}, session.Dependencies{DB: db})
	if err != nil {
		return err
	}
	defer store.Close()
	gate := session.NewGate(store, logger)

	// Translation model factory; without one the engine still serves the dictionary
	factory, err := ml.NewFactory(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		logger.Warn("Translation model unavailable, dictionary only", "type", cfg.ML.Type, "error", err)
		factory = nil
	}

	dict, err := translation.LoadDictionary(cfg.Translation.DictionaryFile)
	if err != nil {
		return err
	}

	bus := evbus.New()
	if err := translation.LogFailures(bus, logger); err != nil {
		return err
	}

	engine := translation.NewEngine(translation.Options{
		Pair:       ml.LanguagePair{Source: cfg.Translation.SourceLang, Target: cfg.Translation.TargetLang},
		Factory:    factory,
		Dictionary: dict,
		Conditions: ml.DownloadConditions{RequireUnmetered: cfg.Translation.RequireUnmetered},
		Bus:        bus,
		Workers:    cfg.Translation.Workers,
		Logger:     logger,
	})
	defer engine.Release()
	if cfg.Translation.Prepare && factory != nil {
		go func() {
			if err := engine.Prepare(ctx); err != nil {
				logger.Warn("Preparing translation models failed", "error", err)
			}
		}()
	}

	packager := imaging.NewPackager(imaging.Options{
		Quality:      cfg.Imaging.JPEGQuality,
		MaxDimension: cfg.Imaging.MaxDimension,
	})

	client := analysis.NewClient(analysis.Config{
		BaseURL:     cfg.Analysis.BaseURL,
		AnalyzePath: cfg.Analysis.AnalyzePath,
		HistoryPath: cfg.Analysis.HistoryPath,
		Timeout:     cfg.AnalysisTimeout(),
	}, gate, logger)

	orchestrator := pipeline.New(pipeline.Deps{
		Gate:       gate,
		Packager:   packager,
		Analyzer:   client,
		Translator: engine,
		Store:      db,
		Language:   cfg.Translation.TargetLang,
		Logger:     logger,
	})

	logger.Info("mealdose ready",
		"session_driver", cfg.Session.Driver,
		"model", cfg.ML.Type,
		"dictionary_entries", dict.Len(),
		"identity", gate.DescribeIdentity(ctx),
	)

	// Initialize and start server
	srv := server.New(server.Deps{
		Pipeline:   orchestrator,
		Translator: engine,
		Sessions:   store,
		Identity:   gate,
		Logger:     logger,
		Debug:      cfg.Server.Debug,
	})
	return srv.Start(cfg.Server.Port, cfg.Server.StaticDir)
}
