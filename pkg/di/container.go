package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtime-chat/backend/internal/broadcast"
	"realtime-chat/backend/internal/repository"
	"realtime-chat/backend/internal/service"
	"realtime-chat/backend/internal/ws"
	"realtime-chat/backend/pkg/cache"
	"realtime-chat/backend/pkg/config"
	"realtime-chat/backend/pkg/health"
	"realtime-chat/backend/pkg/jwt"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/resilience"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *logger.Logger
	JWTService  *jwt.Service
	Users       *repository.GormUserRepository
	Messages    *repository.GormMessageRepository
	NameCache   *cache.Cache[uint, string]
	UserService *service.UserService
	ChatService *service.ChatService
	Hub         *ws.Hub
	Publisher   broadcast.Publisher
	Notifier    *broadcast.Notifier
	Breaker     *resilience.CircuitBreaker
	Health      *health.Checker
}

// Options are the already-opened resources the container is built from
type Options struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client // nil runs the broadcast in-process only
	Logger        *logger.Logger
	SessionSecret string
}

// New creates a new dependency injection container
func New(opts Options) (*Container, error) {
	if opts.DB == nil {
		return nil, errors.New("di: database is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetGlobal()
	}
	secret := opts.SessionSecret
	if secret == "" {
		secret = cfg.Session.Secret
	}

	jwtService := jwt.NewService(secret, cfg.Session.TTL)

	users := repository.NewGormUserRepository(opts.DB)
	messages := repository.NewGormMessageRepository(opts.DB)

	nameCache := cache.New[uint, string](cache.Options{
		TTL:             cfg.Chat.NameCacheTTL,
		CleanupInterval: cfg.Chat.NameCacheTTL,
		MaxItems:        cfg.Chat.NameCacheSize,
	})

	hub := ws.NewHub(log)

	c := &Container{
		Config:      cfg,
		DB:          opts.DB,
		Redis:       opts.Redis,
		Logger:      log,
		JWTService:  jwtService,
		Users:       users,
		Messages:    messages,
		NameCache:   nameCache,
		UserService: service.NewUserService(users, jwtService),
		ChatService: service.NewChatService(messages, service.NewCachedDirectory(users, nameCache), log),
		Hub:         hub,
		Health:      health.NewChecker(log, 30*time.Second),
	}

	if opts.Redis != nil {
		c.Breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("redis-publish"), log)
		c.Publisher = broadcast.NewRedisPublisher(opts.Redis, cfg.Redis.Channel, c.Breaker)
	} else {
		c.Publisher = broadcast.NewHubPublisher(hub)
	}
	c.Notifier = broadcast.NewNotifier(c.Publisher, cfg.Chat.PublishTimeout, log)

	c.registerHealthChecks()
	return c, nil
}

func (c *Container) registerHealthChecks() {
	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	if c.Redis == nil {
		return
	}

	c.Health.RegisterRedisCheck(func(ctx context.Context) error {
		return c.Redis.Ping(ctx).Err()
	})
	c.Health.RegisterCheck("broadcast", false, func(ctx context.Context) health.Result {
		status := health.StatusUp
		description := "Publishing normally"
		if c.Breaker.GetState() != resilience.StateClosed {
			status = health.StatusDegraded
			description = "Publishing suspended after repeated failures"
		}
		return health.Result{Status: status, Description: description, Details: c.Breaker.GetMetrics()}
	})
}

// Start runs the background workers until ctx is cancelled: the websocket
// hub, the name cache purge, the redis relay and the periodic health checks.
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run(ctx)
	go c.NameCache.RunCleanup(ctx)
	c.Health.Start(ctx)

	if c.Redis == nil {
		c.Logger.Info("Redis disabled, broadcasting in-process only")
		return
	}

	go c.relayRedis(ctx)
}

// relayRedis keeps the pub/sub subscription alive, resubscribing after errors
func (c *Container) relayRedis(ctx context.Context) {
	backoff := time.Second
	for {
		err := c.Hub.SubscribeRedis(ctx, c.Redis, c.Config.Redis.Channel)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = time.Second
		} else {
			c.Logger.Warn("Broadcast subscription lost, retrying",
				"channel", c.Config.Redis.Channel,
				"retry_in", backoff.String(),
				"error", err.Error(),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Close releases the connections the container was given
func (c *Container) Close() error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
