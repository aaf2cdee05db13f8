package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/slidecast/slidecast/internal/api"
	"github.com/slidecast/slidecast/internal/config"
	"github.com/slidecast/slidecast/internal/fetch"
	"github.com/slidecast/slidecast/internal/queue"
	"github.com/slidecast/slidecast/internal/services"
	"github.com/slidecast/slidecast/internal/storage"
	"github.com/slidecast/slidecast/internal/store"
	"github.com/slidecast/slidecast/internal/webhook"
	"github.com/slidecast/slidecast/internal/worker"
)

func main() {
	log.Println("Starting Slidecast API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}

	// Job store — in-memory with time-based eviction
	jobStore := store.NewMemoryStore(cfg.JobRetention)
	defer jobStore.Close()

	// Optional redis queue for bounded-concurrency dispatch
	var q *queue.Queue
	if cfg.RedisURL != "" {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		log.Println("Connected to Redis queue")
	} else {
		log.Println("No REDIS_URL set — dispatching jobs in-process")
	}

	// Blob store: Supabase when configured, local filesystem otherwise
	var blob storage.BlobStore
	var filesDir string
	if cfg.SupabaseURL != "" {
		blob = storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		log.Println("Using Supabase blob store")
	} else {
		local, err := storage.NewLocalStore(filepath.Join(cfg.WorkDir, "renders"), cfg.PublicBaseURL)
		if err != nil {
			log.Fatalf("Failed to init local store: %v", err)
		}
		blob = local
		filesDir = local.Dir()
		log.Printf("Using local blob store at %s", filesDir)
	}

	// Media collaborators
	ffmpegSvc := services.NewFFmpegService()
	resolver := services.NewDurationResolver(ffmpegSvc, cfg.DefaultSlideSeconds, cfg.MinSlideSeconds)
	composer := services.NewComposer(cfg.CaptionMaxWords)
	mixer := services.NewAudioMixer(ffmpegSvc, services.MixPolicy{
		MusicGain: cfg.MusicGain,
		VoiceGain: cfg.VoiceGain,
	})
	renderer := services.NewRenderer(ffmpegSvc)
	fetcher := fetch.New(cfg.FetchTimeout, cfg.FetchRetries)
	notifier := webhook.New(cfg.WebhookRetries)

	orchestrator := worker.New(jobStore, fetcher, resolver, composer, mixer, renderer, blob, notifier, q, worker.Options{
		WorkDir:            cfg.WorkDir,
		Width:              cfg.RenderWidth,
		Height:             cfg.RenderHeight,
		FPS:                cfg.RenderFPS,
		TransitionSeconds:  cfg.TransitionSeconds,
		CleanupGrace:       cfg.CleanupGrace,
		CleanupFailGrace:   cfg.CleanupFailGrace,
		InlineWebhookVideo: cfg.InlineWebhookVideo,
	})

	// Start queue workers when redis mode is on
	var workerCancel context.CancelFunc
	if q != nil {
		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go orchestrator.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	handler := api.NewHandler(jobStore, orchestrator)
	router := api.NewRouter(handler, api.RouterConfig{
		APIKey:             cfg.APIKey,
		CorsAllowedOrigins: cfg.CorsOrigins,
		FilesDir:           filesDir,
	})

	if cfg.APIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
