package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"circle/internal/config"
	"circle/internal/db"
	"circle/internal/handlers"
	"circle/internal/logger"
	"circle/internal/metrics"
	"circle/internal/middleware"
	"circle/internal/realtime"
	"circle/internal/router"
	"circle/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, reading env vars from system")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 实时推送：配置了 Redis 时跨实例广播
	hub := realtime.NewHub()
	var broker realtime.Broker = realtime.NewLocalBroker(hub)
	if cfg.RedisURL != "" {
		rb, err := realtime.NewRedisBroker(cfg.RedisURL, hub)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis broker initialization failed")
		}
		defer rb.Close()
		go func() {
			if err := rb.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Realtime broker stopped")
			}
		}()
		broker = rb
	}

	// Services
	tokens := services.NewTokenService(conn, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	uploader := services.NewImgurUploader(cfg.ImgurClientID)
	ranking := services.NewRankingService(conn)
	ranking.Start(ctx)

	notifications := services.NewNotificationService(conn, broker)
	follows := services.NewFollowService(conn, notifications, broker)
	users := services.NewUserService(conn, follows, uploader, hub)
	follows.OnChange(users.InvalidateSuggestions)
	posts := services.NewPostService(conn, ranking, uploader)
	chat := services.NewChatService(conn, notifications, broker)

	authLimiter := middleware.NewRateLimiter(cfg.AuthRatePerSec, cfg.AuthRateBurst)

	scheduler := services.NewScheduler()
	if err := services.RegisterMaintenance(scheduler, cfg.CleanupSchedule, cfg.NotificationRetention,
		tokens, notifications, ranking); err != nil {
		log.Fatal().Err(err).Msg("Invalid cleanup schedule")
	}
	if err := scheduler.Add("@every 10m", "purge_rate_limiters", func(context.Context) (int64, error) {
		return int64(authLimiter.Cleanup(30 * time.Minute)), nil
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule rate limiter cleanup")
	}
	scheduler.Start()

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), logger.Middleware(l), metrics.Middleware())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	cookie := router.RefreshCookie(cfg.CookieSecure, cfg.RefreshTokenTTL)
	r.Use(sessions.Sessions(handlers.RefreshCookieName, router.SessionStore(cfg.RefreshSecret, cookie)))
	r.Use(middleware.ErrorHandler(), middleware.BodyLimit(1<<20, cfg.MaxUploadBytes()))

	router.RegisterRoutes(r, router.Handlers{
		Auth:          handlers.NewAuthHandler(services.NewAuthService(conn, tokens), cookie),
		Users:         handlers.NewUserHandler(users),
		Posts:         handlers.NewPostHandler(posts),
		Comments:      handlers.NewCommentHandler(services.NewCommentService(conn, ranking, notifications, broker)),
		Likes:         handlers.NewLikeHandler(services.NewLikeService(conn, ranking, notifications, broker)),
		Bookmarks:     handlers.NewBookmarkHandler(services.NewBookmarkService(conn, posts, ranking)),
		Follows:       handlers.NewFollowHandler(follows),
		Notifications: handlers.NewNotificationHandler(notifications),
		Chat:          handlers.NewChatHandler(chat),
		Settings: handlers.NewSettingsHandler(services.NewSettingsService(conn, tokens),
			services.NewSubscriptionService(conn)),
		Realtime:    realtime.NewServer(hub, broker, tokens, chat, cfg.AllowedOrigins()),
		Health:      handlers.Health(func(ctx context.Context) error { return db.Ping(ctx, conn) }),
		Tokens:      tokens,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Circle server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	hub.Close()
	<-scheduler.Stop().Done()

	select {
	case <-ranking.Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Ranking worker did not finish in time")
	}
}
