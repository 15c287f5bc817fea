package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readinghub/backend/internal/cache"
	"readinghub/backend/internal/catalog"
	"readinghub/backend/internal/config"
	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/handler"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/lib/sl"
	"readinghub/backend/internal/middleware"
	"readinghub/backend/internal/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Swagger imports
	_ "readinghub/backend/docs" // registers the generated OpenAPI document

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 15 * time.Second

func init() {
	config.LoadConfig()
}

// @title           Readinghub API
// @version         1.0
// @description     Social reading platform: book catalog, reading lists, ratings, book clubs, friends and chat.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	log := sl.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database
	database.Connect(cfg.DatabaseURL)
	defer func() {
		if err := database.Close(); err != nil {
			log.Error("closing database", sl.Err(err))
		}
	}()

	ctx := context.Background()

	var catalogCache catalog.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, catalog runs uncached", sl.Err(err))
		} else {
			catalogCache = redisCache
			defer redisCache.Close()
		}
	}
	handler.Catalog = catalog.NewClient(catalog.Options{
		BaseURL:  cfg.CatalogBaseURL,
		APIKey:   cfg.CatalogAPIKey,
		CacheTTL: cfg.CatalogCacheTTL,
		Cache:    catalogCache,
		Logger:   log,
	})

	if cfg.RabbitMQURL != "" {
		publisher, err := events.Dial(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, domain events are dropped", sl.Err(err))
		} else {
			events.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer apiLimiter.Stop()
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	defer authLimiter.Stop()

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Metrics(),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("panic recovered", slog.Any("panic", recovered), slog.String("path", c.Request.URL.Path))
			response.Abort(c, http.StatusInternalServerError, "Internal server error")
		}),
		cors.New(corsConfig(cfg)),
		handler.ErrorHandler(),
	)

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		response.Message(c, http.StatusOK, "pong")
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router, handler.RouteOptions{
		APILimiter:  apiLimiter.Middleware(),
		AuthLimiter: authLimiter.Middleware(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server is running", slog.String("addr", srv.Addr), slog.String("swagger", "/swagger/index.html"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", sl.Err(err))
			os.Exit(1)
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()
	log.Info("shutting down")

	// Websocket and event-stream handlers exit once their rooms close.
	for _, room := range hub.GlobalHub.Rooms() {
		hub.GlobalHub.CloseRoom(room)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	origins := cfg.AllowedOrigins()
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	if len(origins) == 0 {
		// Same-origin only.
		c.AllowOriginFunc = func(string) bool { return false }
		return c
	}
	c.AllowOrigins = origins
	return c
}
