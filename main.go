package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"aircast/aqi"
	"aircast/db"
	airhttp "aircast/http"
	"aircast/logging"
	"aircast/pipeline"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log   logging.Config `yaml:"log"`
	Model struct {
		ID   string `yaml:"id"`
		Seed int64  `yaml:"seed"`
	} `yaml:"model"`
	Data struct {
		EarliestDate string     `yaml:"earliest_date"`
		LatestDate   string     `yaml:"latest_date"`
		TrainRatio   float64    `yaml:"train_ratio"`
		Bands        []aqi.Band `yaml:"bands"`
	} `yaml:"data"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, level := logging.New(config.Log)
	defer logger.Sync()

	store, err := db.Open(config.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()
	logger.Info("database ready", zap.String("path", config.Database.Path))

	earliest, latest, err := parseDateRange(config)
	if err != nil {
		logger.Fatal("invalid data date range", zap.Error(err))
	}

	hub := airhttp.NewProgressHub(logger)
	runner := pipeline.NewRunner(pipeline.Config{
		ModelID:      config.Model.ID,
		TrainRatio:   config.Data.TrainRatio,
		EarliestDate: earliest,
		LatestDate:   latest,
		Bands:        config.Data.Bands,
		Seed:         config.Model.Seed,
		OnEpoch:      hub.Publish,
	}, store, logger)

	serverCfg := airhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverCfg.Port = config.Http.Port
	}
	if len(config.Http.AllowedOrigins) != 0 {
		serverCfg.AllowedOrigins = config.Http.AllowedOrigins
	}
	handlers := airhttp.NewHandlers(runner, store, hub, config.Data.Bands, logger)
	server := airhttp.NewServer(serverCfg, handlers, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", server.Addr()))

	stopWatch := watchConfig(*configPath, level, logger)
	defer stopWatch()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	if config.Model.ID == "" {
		config.Model.ID = "ispu_total"
	}
	return &config, nil
}

func parseDateRange(config *Config) (time.Time, time.Time, error) {
	earliest, err := time.Parse("2006-01-02", config.Data.EarliestDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	latest, err := time.Parse("2006-01-02", config.Data.LatestDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return earliest, latest, nil
}

// watchConfig re-reads the config on change and applies the log level
// without a restart. Other settings still require one.
func watchConfig(path string, level zap.AtomicLevel, logger *zap.Logger) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watch unavailable", zap.Error(err))
		return func() {}
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("config watch unavailable", zap.Error(err))
		watcher.Close()
		return func() {}
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				config, err := loadConfig(path)
				if err != nil {
					logger.Warn("config reload failed", zap.Error(err))
					continue
				}
				newLevel := logging.ParseLevel(config.Log.Level)
				if level.Level() != newLevel {
					level.SetLevel(newLevel)
					logger.Info("log level changed", zap.String("level", newLevel.String()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", zap.Error(err))
			}
		}
	}()
	return func() { watcher.Close() }
}
