package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/handlers"
	"github.com/MegaGrindStone/meet-assistant/internal/logging"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
	"gopkg.in/yaml.v3"
)

const errLoggerKey = "err"

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgDir = filepath.Join(cfgDir, "meet-assistant")

	cfgFilePath := flag.String("config", filepath.Join(cfgDir, "server.yaml"), "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.applyDefaults()

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	llm, err := cfg.LLM.llm(logger)
	if err != nil {
		logger.Warn("Chat provider is not configured", slog.String(errLoggerKey, err.Error()))
	}

	tts := services.NewElevenLabs(cfg.TTS.APIKey, cfg.TTS.BaseURL, cfg.TTS.Model, logger)
	if !tts.Configured() {
		logger.Warn("ElevenLabs API key is not configured, speech synthesis is disabled")
	}

	var cache handlers.AudioCache
	var closeCache func() error
	if cfg.TTS.AudioCacheFile != "" {
		path := cfg.TTS.AudioCacheFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(*cfgFilePath), path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			log.Fatal(fmt.Errorf("error creating audio cache directory: %w", err))
		}
		boltCache, err := services.NewBoltAudioCache(path)
		if err != nil {
			log.Fatal(err)
		}
		cache = boltCache
		closeCache = boltCache.Close
		logger.Info("Audio cache enabled", slog.String("path", path))
	}

	api := handlers.NewAPI(llm, tts, cache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ai/chat", api.HandleChat)
	mux.HandleFunc("/api/tts", api.HandleTTS)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.LogRequests(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if closeCache == nil {
			return
		}
		if err := closeCache(); err != nil {
			logger.Error("Failed to close audio cache", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String(errLoggerKey, err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}
}

// loadConfig reads the config file at path. A missing file yields the zero config, which applyDefaults
// turns into a Groq backend keyed from the environment.
func loadConfig(path string) (config, error) {
	cfg := config{}

	cfgFile, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}
