package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/techaid-za/voicedesk/audio"
	"github.com/techaid-za/voicedesk/config"
	"github.com/techaid-za/voicedesk/gemini"
	"github.com/techaid-za/voicedesk/observability"
	"github.com/techaid-za/voicedesk/server"
	"github.com/techaid-za/voicedesk/session"
	"github.com/techaid-za/voicedesk/visualizer"
)

// tapSize holds ~85ms of playback audio, comfortably more than one
// visualizer analysis window.
const tapSize = 2048

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	store := session.NewStore(cfg.RedisURL, cfg.RedisPassword)

	manager := session.NewManager(session.ManagerConfig{
		Dial:           geminiDialer(cfg),
		Store:          store,
		Metrics:        metrics,
		NewDevices:     newDevices,
		WhatsAppNumber: cfg.WhatsAppNumber,
		MaxSessions:    cfg.MaxSessions,
		SessionTimeout: cfg.SessionTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go manager.StartCleanupRoutine(ctx)

	srv := server.New(cfg, manager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}

// geminiDialer bridges the session package's dial contract onto the
// Gemini Live channel.
func geminiDialer(cfg *config.Config) session.RemoteDialer {
	return func(ctx context.Context, systemPrompt string, h session.RemoteHandlers) (session.RemoteChannel, error) {
		ch, err := gemini.NewChannel(ctx, gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Voice:  cfg.VoiceName,
		})
		if err != nil {
			return nil, err
		}

		ch.OnAudio = h.OnAudio
		ch.OnToolCall = h.OnToolCall
		ch.OnInterrupted = h.OnInterrupted
		ch.OnComplete = h.OnComplete
		ch.OnError = h.OnError

		if err := ch.Connect(ctx, systemPrompt); err != nil {
			ch.Close()
			return nil, err
		}
		return ch, nil
	}
}

// newDevices opens the real microphone and speaker for a session.
func newDevices(onVisual func(visualizer.Frame)) (session.Devices, error) {
	tap := audio.NewTap(tapSize)

	sink, err := audio.NewOtoSink(audio.PlaybackRate, tap)
	if err != nil {
		return session.Devices{}, err
	}

	device := audio.NewMalgoDevice(audio.CaptureRate)
	capture := audio.NewCapture(device, audio.CaptureRate, audio.DefaultFrameSize)

	return session.Devices{
		Capture:  capture,
		Playback: audio.NewScheduler(sink),
		Visual:   visualizer.New(tap, onVisual),
	}, nil
}
