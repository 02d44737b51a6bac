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

	"nutricoach-api/internal/config"
	"nutricoach-api/internal/db"
	apihttp "nutricoach-api/internal/http"
	"nutricoach-api/internal/llm"
	"nutricoach-api/internal/repository"
	"nutricoach-api/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	threads  repository.ThreadRepository
	messages repository.MessageRepository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogFormat)
	defer logger.Sync()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			if cfg.StorageBackend == config.StorageRedis {
				logger.Fatal("redis ping failed", zap.Error(err))
			}
			logger.Warn("redis ping failed, falling back to in-memory limiter", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	var st stores
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		st = stores{
			users:    repository.NewPgUserRepository(pool),
			sessions: repository.NewPgSessionRepository(pool),
			threads:  repository.NewPgThreadRepository(pool),
			messages: repository.NewPgMessageRepository(pool),
		}
	case config.StorageRedis:
		st = stores{
			users:    repository.NewMemoryUserRepository(),
			sessions: repository.NewRedisSessionRepository(redisClient),
			threads:  repository.NewRedisThreadRepository(redisClient),
			messages: repository.NewRedisMessageRepository(redisClient),
		}
	default:
		st = stores{
			users:    repository.NewMemoryUserRepository(),
			sessions: repository.NewMemorySessionRepository(),
			threads:  repository.NewMemoryThreadRepository(),
			messages: repository.NewMemoryMessageRepository(),
		}
	}
	logger.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	credentialSvc := service.NewCredentialService(logger, st.users)
	seed, err := service.ParseUserEntries(cfg.DemoUsers, 0)
	if err != nil {
		logger.Fatal("parse DEMO_USERS", zap.Error(err))
	}
	if err := credentialSvc.SeedUsers(ctx, seed); err != nil {
		logger.Fatal("seed users", zap.Error(err))
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = uuid.NewString()
		logger.Warn("jwt secret not configured, using an ephemeral one; sessions will not survive restarts")
	}

	window := time.Duration(cfg.LoginWindowMinutes) * time.Minute
	var limiter service.LoginRateLimiter
	if redisClient != nil {
		limiter = service.NewRedisLoginRateLimiter(redisClient, window, cfg.LoginMaxAttempts)
	} else {
		limiter = service.NewLoginRateLimiter(window, cfg.LoginMaxAttempts)
	}

	llmTimeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	gateway := newGateway(cfg, llmTimeout, logger)

	sessionSvc := service.NewSessionService(
		logger,
		credentialSvc,
		service.NewTokenService(jwtSecret),
		st.sessions,
		st.users,
		limiter,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
	)
	conversationSvc := service.NewConversationService(logger, st.threads, st.messages)
	chatSvc := service.NewChatService(logger, conversationSvc, gateway, llmTimeout)

	authHandler := apihttp.NewAuthHandler(logger, sessionSvc)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc, conversationSvc)
	router := apihttp.NewRouter(logger, cfg.CORSOrigins, sessionSvc, authHandler, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("llm_provider", cfg.LLMProvider),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(format string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if format == "console" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newGateway(cfg *config.Config, timeout time.Duration, logger *zap.Logger) llm.Gateway {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIGateway(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMSystemPrompt, logger)
	case config.ProviderHTTP:
		return llm.NewHTTPGateway(cfg.LLMBaseURL, cfg.LLMAPIKey, timeout)
	default:
		return llm.NewEchoGateway()
	}
}
