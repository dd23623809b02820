package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/echohealth/internal/api"
	"github.com/RMahshie/echohealth/internal/audio"
	"github.com/RMahshie/echohealth/internal/config"
	"github.com/RMahshie/echohealth/internal/features"
	"github.com/RMahshie/echohealth/internal/processing"
	"github.com/RMahshie/echohealth/internal/storage"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Server.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	scratch, err := storage.NewScratch(cfg.Server.ScratchDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare scratch directory")
	}

	var s3Service storage.S3Service
	if cfg.AWS.S3Bucket != "" {
		s3Service, err = storage.NewS3Service(storage.S3Config{
			Bucket:    cfg.AWS.S3Bucket,
			Endpoint:  cfg.AWS.S3Endpoint,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 service")
		}
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Object storage enabled")
	}

	decoder := audio.NewDecoder(audio.Config{
		FFmpegPath:  cfg.Decoder.FFmpegPath,
		FFprobePath: cfg.Decoder.FFprobePath,
		Timeout:     cfg.Decoder.Timeout,
		MaxDuration: cfg.Decoder.MaxDuration,
	})

	analysis := features.DefaultConfig()
	analysis.Pitch.Floor = cfg.Analysis.PitchFloor
	analysis.Pitch.Ceiling = cfg.Analysis.PitchCeiling
	analysis.MaxFormant = cfg.Analysis.MaxFormant
	analysis.NumFormants = cfg.Analysis.NumFormants

	extractor := features.NewExtractor(decoder, analysis)
	processingSvc := processing.NewProcessingService(scratch, s3Service, extractor)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	humaAPI := api.NewAPI(router)
	api.RegisterRoutes(router, humaAPI, processingSvc, s3Service, cfg.Server.MaxUploadBytes)

	// Start server
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting EchoHealth API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
