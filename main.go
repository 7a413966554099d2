package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"textstream/config"
	thttp "textstream/http"
	"textstream/logging"
	"textstream/monitoring"
	"textstream/predictor"
	"textstream/store"
	"textstream/trainer"
)

type ServerConfig struct {
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Trainer struct {
		ConfigPath string `yaml:"config_path"`
	} `yaml:"trainer"`
}

func main() {
	// 1. Load server config
	cfg, err := loadServerConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer zap.S().Sync()

	// 2. Trainer config with hot reload
	trainerCfgPath := cfg.Trainer.ConfigPath
	if trainerCfgPath == "" {
		trainerCfgPath = "config.json"
	}
	watcher, err := config.NewWatcher(trainerCfgPath)
	if err != nil {
		zap.S().Fatalf("Failed to load trainer config: %v", err)
	}
	if err := watcher.Start(); err != nil {
		zap.S().Warnf("Config watcher disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	// 3. Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "./data/textstream.db"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		zap.S().Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	zap.S().Infof("store initialized at %s", dbPath)

	// 4. Monitoring
	hub := monitoring.NewHub()
	hub.Start()
	defer hub.Stop()
	metrics := monitoring.NewCollector()

	// 5. Coordinators
	streamTrainer := trainer.New(watcher.Get, st, hub)
	predictorMgr := predictor.New(watcher.Get().ModelDir, streamTrainer.IsRunning)

	// 6. HTTP server
	serverCfg := thttp.DefaultServerConfig()
	if cfg.Http.Port != 0 {
		serverCfg.Port = cfg.Http.Port
	}
	server := thttp.NewServer(serverCfg, &thttp.App{
		Trainer:   streamTrainer,
		Predictor: predictorMgr,
		Store:     st,
		Hub:       hub,
		Metrics:   metrics,
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down...")

	if streamTrainer.IsRunning() {
		if _, err := streamTrainer.Stop(); err != nil {
			zap.S().Errorf("Trainer stop: %v", err)
		}
	}
	if err := server.Stop(); err != nil {
		zap.S().Errorf("Server forced to shutdown: %v", err)
	}

	zap.S().Info("exiting")
}

func loadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
