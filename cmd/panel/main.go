package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	meetassistant "github.com/MegaGrindStone/meet-assistant"
	"github.com/MegaGrindStone/meet-assistant/internal/capture"
	"github.com/MegaGrindStone/meet-assistant/internal/chat"
	"github.com/MegaGrindStone/meet-assistant/internal/device"
	"github.com/MegaGrindStone/meet-assistant/internal/handlers"
	"github.com/MegaGrindStone/meet-assistant/internal/logging"
	"github.com/MegaGrindStone/meet-assistant/internal/render"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
	"github.com/MegaGrindStone/meet-assistant/internal/speech"
)

const errLoggerKey = "err"

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}

	cfgFilePath := flag.String("config", filepath.Join(cfgDir, "meet-assistant", "panel.yaml"),
		"path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	backend := services.NewChatClient(cfg.Backend.ChatURL, nil, logger)

	var remote speech.RemoteVoice
	if cfg.Backend.TTSURL != "" {
		remote = services.NewVoiceClient(cfg.Backend.TTSURL, cfg.Backend.VoiceID, nil, logger)
	}

	player := speech.NewPlayer(cfg.Speech, remote, newSink(cfg.Devices, logger), newSynthesizer(cfg.Devices, logger),
		nil, logger)
	listener := speech.NewListener(newRecognizer(cfg.Devices, logger), logger)

	capturer := capture.NewCapturer(cfg.Capture, device.FileSource(cfg.Devices.FrameFiles),
		newScreen(cfg.Devices, logger), logger)
	camera := newCamera(cfg.Devices, logger)

	conv := chat.NewPanel(cfg.Agent, backend, player, listener, capturer, camera, logger)

	p, err := handlers.NewPanel(conv, render.NewMarkdown(cfg.CodeStyle), logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(meetassistant.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", p.HandleHome)
	mux.HandleFunc("/send", p.HandleSend)
	mux.HandleFunc("/input", p.HandleInput)
	mux.HandleFunc("/vision", p.HandleVision)
	mux.HandleFunc("/auto-speak", p.HandleAutoSpeak)
	mux.HandleFunc("/listen", p.HandleListen)
	mux.HandleFunc("/stop-speaking", p.HandleStopSpeaking)
	mux.HandleFunc("/quick-action", p.HandleQuickAction)
	mux.HandleFunc("/sse", p.HandleSSE)

	srv := &http.Server{
		Addr:              "localhost:" + cfg.Port,
		Handler:           handlers.LogRequests(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
		conv.Close()
		if camera != nil {
			camera.Stop()
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Panel starting", slog.String("addr", "http://"+srv.Addr),
			slog.Bool("voiceInput", listener.IsSupported()),
			slog.Bool("speech", player.IsSupported()),
			slog.Bool("camera", camera != nil))
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

func newRecognizer(cfg devicesConfig, logger *slog.Logger) speech.Recognizer {
	if cfg.Recognizer.Command == "" {
		return nil
	}
	rec, err := device.NewCommandRecognizer(cfg.Recognizer.Command, cfg.Recognizer.Args, logger)
	if err != nil {
		logger.Warn("Voice input disabled", slog.String(errLoggerKey, err.Error()))
		return nil
	}
	return rec
}

func newSynthesizer(cfg devicesConfig, logger *slog.Logger) speech.Synthesizer {
	if cfg.Synthesizer == "" {
		return nil
	}
	synth, err := device.NewCommandSynthesizer(cfg.Synthesizer, logger)
	if err != nil {
		logger.Warn("Local speech disabled", slog.String(errLoggerKey, err.Error()))
		return nil
	}
	return synth
}

func newSink(cfg devicesConfig, logger *slog.Logger) speech.AudioSink {
	if cfg.Player.Command == "" {
		return nil
	}
	sink, err := device.NewCommandSink(cfg.Player.Command, cfg.Player.Args, logger)
	if err != nil {
		logger.Warn("Remote speech playback disabled", slog.String(errLoggerKey, err.Error()))
		return nil
	}
	return sink
}

func newCamera(cfg devicesConfig, logger *slog.Logger) capture.Stream {
	if !cfg.Camera.Enabled {
		return nil
	}
	stream, err := device.NewFFmpegStream(cfg.FFmpeg, cfg.Camera.Input, logger)
	if err != nil {
		logger.Warn("Camera disabled", slog.String(errLoggerKey, err.Error()))
		return nil
	}
	return stream
}

func newScreen(cfg devicesConfig, logger *slog.Logger) capture.ScreenSource {
	if !cfg.Screen.Enabled {
		return nil
	}
	screen, err := device.NewFFmpegScreen(cfg.FFmpeg, cfg.Screen.Input, logger)
	if err != nil {
		logger.Warn("Screen capture disabled", slog.String(errLoggerKey, err.Error()))
		return nil
	}
	return screen
}
