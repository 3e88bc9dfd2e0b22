package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"trunkfat/db"
	qhttp "trunkfat/http"
	"trunkfat/logging"
	"trunkfat/ml"
	"trunkfat/monitoring"
)

type Config struct {
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Model struct {
		Path         string `yaml:"path"`
		FallbackPath string `yaml:"fallback_path"`
		Watch        bool   `yaml:"watch"`
		CacheSize    int    `yaml:"cache_size"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logging.Config `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(config.Log)
	defer logger.Sync()

	// PORT environment variable overrides the configured port
	port := config.Http.Port
	if port == 0 {
		port = 5000
	}
	if env := os.Getenv("PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil {
			port = p
		}
	}

	// 2. Initialize database (history is optional, the service runs without it)
	if config.Database.Path != "" {
		if err := db.InitDB(config.Database.Path); err != nil {
			logger.Warn("failed to initialize database, history disabled", zap.Error(err))
		} else {
			qhttp.SetHistoryEnabled(true)
			logger.Info("database initialized", zap.String("path", config.Database.Path))
		}
	}

	// 3. Load model; a nil model degrades the service but never prevents startup
	loader := ml.NewLoader(config.Model.Path, config.Model.FallbackPath, logger)
	qhttp.SetLogger(logger)
	qhttp.SetLoader(loader)
	if err := qhttp.InitResultCache(config.Model.CacheSize); err != nil {
		logger.Warn("failed to initialize result cache", zap.Error(err))
	}

	monitoring.ModelReloads.WithLabelValues("startup").Inc()
	if model := loader.Load(); model != nil {
		qhttp.SetModel(model)
	} else {
		logger.Error("model not loaded, serving in degraded mode")
	}

	// 4. Start monitor hub
	hub := monitoring.NewHub(logger)
	go hub.Start()
	qhttp.SetMonitorHub(hub)

	// 5. Watch the model artifact for hot reload
	var watcher *ml.Watcher
	if config.Model.Watch {
		handle := qhttp.ModelHandle()
		watcher, err = ml.WatchModel(config.Model.Path, loader, handle, logger, func() {
			qhttp.PurgeResultCache()
			monitoring.ModelReloads.WithLabelValues("file_change").Inc()
			hub.Publish(monitoring.ModelReloadEvent, map[string]interface{}{
				"model_loaded": handle.Loaded(),
			})
		})
		if err != nil {
			logger.Warn("failed to watch model artifact", zap.Error(err))
		}
	}

	// 6. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	serverConfig.Port = port
	server := qhttp.NewServer(serverConfig, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 7. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if watcher != nil {
		watcher.Close()
	}
	hub.Stop()
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}

	logger.Info("exiting")
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
	return &config, nil
}
