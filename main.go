package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consultancy-cms/config"
	"consultancy-cms/handlers"
	"consultancy-cms/helper"
	"consultancy-cms/mailer"
	"consultancy-cms/middleware"
	"consultancy-cms/repositories"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	logger := helper.InitLogger(helper.LogOptions{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Env:    cfg.Env,
		Source: cfg.LogSource,
	})
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logger.Error("database init failed", slog.Any("error", err))
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	tokenRepo := repositories.NewVerificationTokenRepository(db)
	postRepo := repositories.NewPostRepository(db)
	commentRepo := repositories.NewCommentRepository(db)

	// Mail delivery
	transport, closeTransport := newTransport(cfg.Mail, logger)
	defer closeTransport()
	var retry mailer.RetryQueue
	if redisClient != nil {
		retry = mailer.NewRedisRetryQueue(redisClient, cfg.Redis.Prefix)
	}
	dispatcher, err := mailer.NewDispatcher(transport, retry, mailer.DispatcherConfig{
		Workers:         cfg.Mail.Workers,
		QueueSize:       cfg.Mail.QueueSize,
		MaxAttempts:     cfg.Mail.MaxAttempts,
		AlertRecipients: cfg.Moderation.AlertRecipients,
		SiteURL:         cfg.SiteURL,
	}, logger)
	if err != nil {
		logger.Error("mail dispatcher init failed", slog.Any("error", err))
		os.Exit(1)
	}
	// Workers outlive the signal so Close can drain the queue.
	dispatcher.Start(context.WithoutCancel(ctx))
	go dispatcher.RunRetries(ctx, cfg.Mail.RetryEvery)

	// Initialize services
	h := helper.NewHTTPHelper()
	identity := services.NewIdentityAdapter(userRepo, accountRepo, sessionRepo, tokenRepo, h.Validate)
	sessionService := services.NewSessionService(identity, cfg.AdminEmails)
	authService := services.NewAuthService(identity, sessionService, dispatcher, services.AuthOptions{
		JWT:                  cfg.JWT,
		SessionTTL:           cfg.SessionTTL,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		SiteURL:              cfg.SiteURL,
	}, logger)
	commentOpts := services.CommentServiceOptions{NotifyOnRejection: cfg.Moderation.NotifyOnRejection}
	if cfg.Moderation.AutoApproveVerified {
		commentOpts.AutoApprove = services.ApproveVerifiedAuthors
	}
	commentService := services.NewCommentService(commentRepo, postRepo, userRepo, sessionService, dispatcher, commentOpts, logger)
	userAdminService := services.NewUserAdminService(userRepo, identity, sessionService, logger)

	go purgeExpired(ctx, identity, cfg.PurgeInterval, logger)

	var submitLimit gin.HandlerFunc
	if redisClient != nil && cfg.Moderation.SubmitLimitPerMinute > 0 {
		limiter, err := middleware.NewFixedWindowLimiter(redisClient, cfg.Redis.Prefix, cfg.Moderation.SubmitLimitPerMinute, time.Minute)
		if err != nil {
			logger.Error("rate limiter init failed", slog.Any("error", err))
			os.Exit(1)
		}
		submitLimit = middleware.RateLimit(limiter, h, logger)
	}

	// Setup router
	router := handlers.NewRouter(handlers.Routes{
		Auth:        handlers.NewAuthHandler(authService, h, cfg.IsProduction()),
		Comments:    handlers.NewCommentHandler(commentService, h),
		Users:       handlers.NewUserAdminHandler(userAdminService, h),
		Middleware:  middleware.NewAuth(sessionService, authService, h, logger),
		Sessions:    sessionService,
		SubmitLimit: submitLimit,
		AllowOrigin: cfg.SiteURL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	dispatcher.Close()
}

func newTransport(cfg config.MailConfig, logger *slog.Logger) (mailer.Transport, func()) {
	switch cfg.Transport {
	case config.MailTransportSMTP:
		return mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.From,
			FromName: cfg.FromName,
		}), func() {}
	case config.MailTransportKafka:
		t := mailer.NewKafkaTransport(mailer.KafkaConfig{
			Broker:   cfg.KafkaBroker,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUser,
			Password: cfg.KafkaPass,
		})
		return t, func() {
			if err := t.Close(); err != nil {
				logger.Warn("kafka writer close failed", slog.Any("error", err))
			}
		}
	default:
		return mailer.NewLogTransport(logger), func() {}
	}
}

func purgeExpired(ctx context.Context, identity services.IdentityAdapter, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions, tokens, err := identity.PurgeExpired(ctx)
			if err != nil {
				logger.Error("purge expired failed", slog.Any("error", err))
				continue
			}
			if sessions > 0 || tokens > 0 {
				logger.Info("purged expired rows", slog.Int64("sessions", sessions), slog.Int64("tokens", tokens))
			}
		}
	}
}
