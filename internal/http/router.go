package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/http/handlers"
	"github.com/nutriplan/nutriplan/internal/http/middlewares"
	"github.com/nutriplan/nutriplan/internal/observability"
	"github.com/nutriplan/nutriplan/internal/repo/postgres"
	"github.com/nutriplan/nutriplan/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, revoker session.Revoker) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("nutriplan-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1 << 20))

	// health + metrics

	pings := map[string]func() error{}

	if pool != nil {
		pings["db"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			return pool.Ping(ctx)
		}
	}

	if redisRevoker, ok := revoker.(*session.RedisRevoker); ok {
		pings["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			return redisRevoker.Ping(ctx)
		}
	}

	h := handlers.NewHealthHandler(pings)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories and handlers

	usersRepo := postgres.NewUsersRepo(pool, prom)
	plansRepo := postgres.NewDietPlansRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL())
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager, revoker)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, revoker, cfg)
	profileHandler := handlers.NewProfileHandler(usersRepo)
	plansHandler := handlers.NewPlansHandler(usersRepo, plansRepo)

	// slow down credential stuffing on the public endpoints
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	r.POST("/register", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Register)
	r.POST("/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
	r.POST("/google-login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.GoogleLogin)
	r.POST("/logout", authHandler.Logout)

	authed := r.Group("/")
	authed.Use(authMiddleware.RequireSession())

	authed.GET("/profile", profileHandler.GetProfile)
	authed.POST("/update-profile", profileHandler.UpdateProfile)
	authed.POST("/createDietPlan", plansHandler.CreateDietPlan)
	authed.GET("/latestDietPlan", plansHandler.LatestDietPlan)
	authed.POST("/publish-diet-plan", plansHandler.PublishPlan)
	authed.GET("/my-diet-plans", plansHandler.MyPlans)
	authed.DELETE("/delete-diet-plan/:planId", plansHandler.DeletePlan)

	return r
}
