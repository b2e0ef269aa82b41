package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"libtrack/database"
	"libtrack/internal/config"
	"libtrack/internal/http-api/handler"
	"libtrack/internal/http-api/middleware"
	"libtrack/internal/http-api/repository"
	"libtrack/internal/http-api/service"
	"libtrack/pkg/logger"
	"libtrack/pkg/tokenstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database handle unavailable")
	}
	defer sqlDB.Close()

	// Redis keeps revoked access tokens visible across restarts; without an
	// address the in-memory store is enough for a single process.
	revokedTokens := tokenstore.NewMemoryStore()
	if cfg.RedisURL != "" {
		revokedTokens, err = tokenstore.NewRedisStore(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
	}
	defer revokedTokens.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, revokedTokens, cfg)
	catalogService := service.NewCatalogService(bookRepo, loanRepo)
	lendingService := service.NewLendingService(loanRepo, bookRepo, userRepo, cfg)
	statsService := service.NewStatsService(statsRepo, userRepo, lendingService)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, int64(cfg.AccessTokenTTL.Seconds()))
	bookHandler := handler.NewBookHandler(catalogService)
	loanHandler := handler.NewLoanHandler(lendingService)
	statsHandler := handler.NewStatsHandler(statsService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRequired := middleware.AuthMiddleware(authService)
	rateLimited := middleware.RateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)

	v1 := r.Group("/api/v1")
	authHandler.RegisterRoutes(v1.Group("/auth"), authRequired, rateLimited)

	books := v1.Group("/books")
	books.Use(authRequired)
	bookHandler.RegisterRoutes(books)

	loans := v1.Group("/loans")
	loans.Use(authRequired)
	loanHandler.RegisterRoutes(loans)

	stats := v1.Group("/stats")
	stats.Use(authRequired)
	statsHandler.RegisterRoutes(stats)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for shutdown signal, then drain in-flight requests.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
