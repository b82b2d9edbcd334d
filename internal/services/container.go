package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client

	CacheService  CacheServiceInterface
	CaptchaSolver CaptchaSolverInterface
	Fetcher       CertificateFetcherInterface
	Planner       PlannerInterface
	DocumentStore DocumentStoreInterface
	Extractor     ExtractorInterface
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	// Initialize Redis client
	if err := container.initRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize services
	if err := container.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

// initRedis initializes Redis client
func (c *Container) initRedis() error {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis connection failed, running without cache")
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}

	return nil
}

// initServices initializes all services
func (c *Container) initServices() error {
	clock := NewClock()

	c.CacheService = NewCacheService(c.redisClient, c.config.Extraction.CacheTTL, c.logger)
	c.Planner = NewPlanner(c.logger)
	c.CaptchaSolver = NewCaptchaSolver(c.config.Captcha, clock, c.logger)

	sessions := cert.DefaultSessionFactory(c.config.Sources.RequestTimeout, c.config.Sources.UserAgent)
	c.Fetcher = NewCertificateFetcher(c.config.Sources, c.CaptchaSolver, sessions, c.logger)

	store, err := NewFileDocumentStore(c.config.Extraction.UploadDir, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	c.DocumentStore = store

	c.Extractor = NewExtractor(c.Fetcher, c.DocumentStore, c.CacheService, c.config.Extraction, clock, c.logger)

	return nil
}

// Close closes all service connections
func (c *Container) Close() error {
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	// Check Redis health
	if c.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		health["redis"] = map[string]interface{}{
			"status": "disabled",
		}
	}

	// Without an API key only the challenge-free sources can be served.
	if c.config.Captcha.APIKey != "" {
		health["captcha"] = map[string]interface{}{
			"status": "healthy",
		}
	} else {
		health["captcha"] = map[string]interface{}{
			"status": "degraded",
			"error":  "captcha API key not configured",
		}
	}

	return health
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
