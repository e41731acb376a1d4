package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/civicpulse/backend/internal/classify"
	"github.com/civicpulse/backend/internal/config"
	"github.com/civicpulse/backend/internal/db"
	"github.com/civicpulse/backend/internal/dedup"
	"github.com/civicpulse/backend/internal/geocode"
	httpapi "github.com/civicpulse/backend/internal/http"
	"github.com/civicpulse/backend/internal/service"
	"github.com/civicpulse/backend/internal/similarity"
	"github.com/civicpulse/backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "civicpulse-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var classifier dedup.Classifier
	if cfg.ClassifierAPIKey == "" {
		classifier = similarity.MockClassifier{}
		logger.Info().Msg("using mock similarity classifier")
	} else {
		classifier = &similarity.GeminiClassifier{
			BaseURL: cfg.ClassifierURL,
			APIKey:  cfg.ClassifierAPIKey,
			Model:   cfg.ClassifierModel,
			Timeout: cfg.ClassifierTimeout,
			Limiter: rate.NewLimiter(rate.Limit(5), 5),
		}
	}

	gate := &dedup.Gate{
		Geo:        store,
		Classifier: classifier,
		Config: dedup.Config{
			RadiusM:       cfg.DedupRadiusM,
			MaxCandidates: cfg.DedupMaxCandidates,
		},
		Logger: logger,
	}

	geocoder := &geocode.NominatimGeocoder{BaseURL: cfg.GeocodeBaseURL}

	intake := &service.IntakeService{
		Store:    store,
		Gate:     gate,
		Geocoder: geocoder,
		Uploader: storage.DiskUploader{Dir: cfg.MediaDir, BaseURL: cfg.MediaBaseURL},
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
	}
	if cfg.DedupCellLock {
		intake.Cells = dedup.NewCellLock()
		logger.Info().Msg("geocell submission lock enabled")
	}

	assigner := &service.AssignmentService{Store: store, Logger: logger}

	var deptClassifier classify.Classifier
	if cfg.DeptClassifyURL == "" {
		deptClassifier = classify.MockClassifier{Department: "general"}
		logger.Info().Msg("using mock department classifier")
	} else {
		deptClassifier = classify.HTTPClassifier{BaseURL: cfg.DeptClassifyURL}
	}

	router := httpapi.Router(cfg, store, intake, assigner, deptClassifier, geocoder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
