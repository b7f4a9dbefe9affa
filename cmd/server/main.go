package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/classifier"
	"github.com/obiwankenobi699/HoneyPot/internal/config"
	"github.com/obiwankenobi699/HoneyPot/internal/dispatcher"
	"github.com/obiwankenobi699/HoneyPot/internal/extractor"
	"github.com/obiwankenobi699/HoneyPot/internal/handler"
	"github.com/obiwankenobi699/HoneyPot/internal/llm"
	"github.com/obiwankenobi699/HoneyPot/internal/middleware"
	"github.com/obiwankenobi699/HoneyPot/internal/notify"
	"github.com/obiwankenobi699/HoneyPot/internal/persona"
	"github.com/obiwankenobi699/HoneyPot/internal/repository"
	"github.com/obiwankenobi699/HoneyPot/internal/service"
	"github.com/obiwankenobi699/HoneyPot/internal/session"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	hashPassword := flag.String("hash-password", "", "print the argon2id hash of the given admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := service.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to hash password:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Log.Production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Honeypot Service...")

	// Storage
	var (
		storeOpts   []session.Option
		sessionRepo *repository.SessionRepository
		deliveries  interface {
			dispatcher.DeliveryLog
			handler.DeliveryLister
		}
	)
	if cfg.Database.Type == repository.TypeMemory {
		deliveries = repository.NewMemoryCallbackLog(1000)
		logger.Warn("Persistence disabled, sessions live in memory only")
	} else {
		db, err := repository.Open(repository.Config{
			Type: cfg.Database.Type,
			Path: cfg.Database.Path,
			URL:  cfg.Database.URL,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		sessionRepo = repository.NewSessionRepository(db, logger)
		storeOpts = append(storeOpts, session.WithBackend(sessionRepo))
		deliveries = repository.NewCallbackRepository(db, logger)
	}
	store := session.NewMemoryStore(logger, storeOpts...)

	// Scam classification
	var scamClassifier classifier.Classifier = classifier.NewKeywordClassifier()
	if cfg.Classifier.Enabled {
		mlClient := classifier.NewMLClient(cfg.Classifier.MLURL, cfg.Classifier.Timeout, logger)
		scamClassifier = classifier.NewFallback(mlClient, scamClassifier, logger)
		logger.Info("ML classifier enabled", zap.String("url", cfg.Classifier.MLURL))
	}

	tr := tracker.New(tracker.NewWeightedPolicy(cfg.Tracker.Weights), cfg.Tracker.ConfirmThreshold)
	disp := dispatcher.New(store, tr, nil, logger)

	// Callback delivery
	senderOpts := []dispatcher.SenderOption{
		dispatcher.WithDeliveryLog(deliveries),
		dispatcher.WithQueueSize(cfg.Callback.QueueSize),
		dispatcher.WithWorkers(cfg.Callback.Workers),
	}
	if sessionRepo != nil {
		// Callbacks flipped by a previous run but never delivered.
		senderOpts = append(senderOpts, dispatcher.WithRedrive(sessionRepo, nil))
	}

	if cfg.Notes.Enabled {
		enricher, err := llm.NewGeminiEnricher(llm.Config{
			APIKey:            cfg.Notes.APIKey,
			ModelName:         cfg.Notes.ModelName,
			MaxRetries:        cfg.Notes.MaxRetries,
			RetryDelay:        cfg.Notes.RetryDelay,
			RequestsPerMinute: cfg.Notes.RequestsPerMinute,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize notes enricher, using template notes", zap.Error(err))
		} else {
			defer enricher.Close()
			senderOpts = append(senderOpts, dispatcher.WithEnricher(enricher))
		}
	}

	sink, err := notify.NewTelegramSink(notify.Config{
		Enabled:  cfg.Telegram.Enabled,
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram notifications", zap.Error(err))
	} else if sink != nil {
		senderOpts = append(senderOpts, dispatcher.WithSinks(sink))
	}

	var deliverer dispatcher.Deliverer
	if cfg.Callback.Enabled {
		deliverer = dispatcher.NewCallbackClient(dispatcher.CallbackConfig{
			URL:        cfg.Callback.URL,
			APIKey:     cfg.Callback.APIKey,
			Timeout:    cfg.Callback.Timeout,
			MaxRetries: cfg.Callback.MaxRetries,
			RetryDelay: cfg.Callback.RetryDelay,
		}, logger)
	} else {
		logger.Warn("Callback delivery disabled, reported sessions are only logged")
	}
	sender := dispatcher.NewSender(deliverer, logger, senderOpts...)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	sender.Start(workerCtx)

	// Initialize service
	honeypot := service.NewHoneypot(service.Deps{
		Store:      store,
		Extractor:  extractor.New(cfg.Extractor),
		Classifier: scamClassifier,
		Tracker:    tr,
		Dispatcher: disp,
		Sender:     sender,
		Personas:   persona.NewPicker(cfg.Personas),
	}, logger)

	auth := service.NewAdminAuth(service.AdminConfig{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
		TokenTTL:     cfg.Admin.TokenTTL,
	}, logger)
	if !auth.Enabled() {
		logger.Warn("Admin endpoints disabled (admin.password_hash or admin.jwt_secret is empty)")
	}
	if cfg.Server.APIKey == "" {
		logger.Warn("server.api_key is empty, honeypot endpoints are unauthenticated")
	}

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(honeypot, deliveries, auth, cfg.Server.APIKey, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Honeypot Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Type),
		zap.Bool("callback", cfg.Callback.Enabled))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain queued callbacks before the database closes.
	if err := sender.Stop(ctx); err != nil {
		logger.Error("Pending callbacks were not delivered", zap.Error(err))
	}

	logger.Info("Server exited")
}
