package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/database"
	"github.com/iliyamo/marketplace-backend/internal/handler"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/queue"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/router"
	"github.com/iliyamo/marketplace-backend/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	sessions := repository.NewSessionRepo(db)
	changes := repository.NewPasswordChangeRepo(db)
	mailer := service.QueueMailer{}

	authH := handler.NewAuthHandler(cfg, users, roles, sessions)
	roleH := handler.NewRoleHandler(cfg, users, roles, sessions)
	resetH := handler.NewResetHandler(cfg, users, mailer)
	adminH := handler.NewAdminHandler(changes)

	// Redis backs rate limiting and the role-catalog cache. Both degrade
	// to pass-through middleware when the client is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Background mail relay; reconnects on its own and never blocks the
	// request path.
	go func() {
		if err := queue.StartMailConsumer(); err != nil {
			log.Printf("mail consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e, roleH, cache)
	router.RegisterAuth(e, authH, resetH, roleH, adminH, sessions, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
