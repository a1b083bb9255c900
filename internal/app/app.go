package app

import (
	"context"
	"time"

	"userauth/internal/auth"
	"userauth/internal/cache"
	"userauth/internal/config"
	"userauth/internal/logging"
	"userauth/internal/metrics"
	"userauth/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg        config.Config
	log        logging.Logger
	closeStore func()
	redis      *redis.Client
	router     *gin.Engine
}

func New(ctx context.Context, cfg config.Config, log logging.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.HashCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	users, closeStore, err := openStore(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	a.closeStore = closeStore

	var profileCache service.ProfileCache
	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		a.redis = rdb
		profileCache = cache.NewUserCache(rdb, cfg.Redis.DefaultTTL.Duration())
	} else {
		log.Info(ctx, "redis not configured, profile cache disabled")
	}

	userSvc := service.NewUserService(users, hasher, tokens, profileCache)
	a.router = newRouter(cfg, log, metrics.NewRegistry(), userSvc)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Close releases the Redis client and the store.
func (a *App) Close(_ context.Context) error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.closeStore != nil {
		a.closeStore()
	}
	return nil
}

func newRouter(cfg config.Config, log logging.Logger, m *metrics.Registry, userSvc *service.UserService) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, cfg, log, m, userSvc)
	return r
}
