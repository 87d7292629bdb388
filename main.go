package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstore "github.com/gofiber/storage/redis"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avelkins10/kin-hvac-tool-sub001/controllers"
	"github.com/avelkins10/kin-hvac-tool-sub001/database"
	"github.com/avelkins10/kin-hvac-tool-sub001/logger"
	"github.com/avelkins10/kin-hvac-tool-sub001/mailer"
	"github.com/avelkins10/kin-hvac-tool-sub001/middlewares"
	"github.com/avelkins10/kin-hvac-tool-sub001/routes"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	// Load .env before anything reads configuration.
	_ = godotenv.Load()

	logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	log := logger.L()

	// ---- Database (public schema; tenant schemas migrate at registration)
	database.Connect()
	database.AutoMigrate()

	// ---- Mail (SES when a region is configured, no-op otherwise)
	if region := os.Getenv("AWS_REGION"); region != "" {
		m, err := mailer.NewSESMailer(context.Background(), region)
		if err != nil {
			log.Warn("mailer setup failed, notifications disabled", zap.Error(err))
		} else {
			controllers.Mail = m
		}
	}

	// ---- Limits (configurable via env)
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter. Counters live in Redis when CACHE_HOST is
	// set so limits hold across replicas; otherwise in-memory.
	rlMax := envInt("RATE_LIMIT_MAX", 60)
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	limiterCfg := limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
	}
	if cacheHost := os.Getenv("CACHE_HOST"); cacheHost != "" {
		limiterCfg.Storage = redisstore.New(redisstore.Config{
			Host:     cacheHost,
			Port:     envInt("CACHE_PORT", 6379),
			Password: os.Getenv("CACHE_PASSWORD"),
		})
	}
	app.Use(limiter.New(limiterCfg))

	// ---- Routes
	routes.Register(app)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info("api server starting", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
