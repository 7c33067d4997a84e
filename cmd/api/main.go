package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"gamelend/account"
	"gamelend/db"
	"gamelend/game"
	"gamelend/migrations"
	"gamelend/organization"
	"gamelend/reservation"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
		logger.Warn("JWT_SECRET is empty, using development secret")
	}

	accountSvc := account.NewService(account.NewRepository(pool), jwtSecret)
	gameRepo := game.NewRepository(pool)
	gameSvc := game.NewService(gameRepo)
	orgRepo := organization.NewRepository(pool)
	scopes := organization.NewScopeResolver(orgRepo)
	reservationSvc := reservation.NewService(pool, reservation.NewRepository(pool), gameRepo, scopes)

	server := &Server{
		log:                logger,
		accountService:     accountSvc,
		gameService:        gameSvc,
		orgService:         orgRepo,
		reservationService: reservationSvc,
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api listening", "addr", addr)
	return httpServer.ListenAndServe()
}
