package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/somnialabs/dreamchat/internal/api"
	"github.com/somnialabs/dreamchat/internal/infrastructure/config"
	mongodb "github.com/somnialabs/dreamchat/internal/infrastructure/db/mongo"
	redisdb "github.com/somnialabs/dreamchat/internal/infrastructure/db/redis"
	"github.com/somnialabs/dreamchat/internal/infrastructure/engine"
	"github.com/somnialabs/dreamchat/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx := context.Background()

	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}()

	ensureIndexes(ctx, db, log)

	threads := mongodb.NewThreadRepository(db)
	eng, err := engine.NewLangChain(cfg.Engine, cfg.Limits.ResponseMaxTokens, threads, logger.Component("engine"))
	if err != nil {
		log.Fatal().Err(err).Msg("engine client initialisation failed")
	}

	e := api.NewRouter(db, rdb, eng, cfg, logger.Component("api"))

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// ensureIndexes creates the collection indexes the read paths depend on.
// Failures are logged, not fatal: the service can serve without them, slower.
func ensureIndexes(ctx context.Context, db *mongo.Database, log zerolog.Logger) {
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := mongodb.NewUserRepository(db).EnsureIndexes(indexCtx); err != nil {
		log.Warn().Err(err).Msg("user indexes not created")
	}
	if err := mongodb.NewDreamRepository(db).EnsureIndexes(indexCtx); err != nil {
		log.Warn().Err(err).Msg("dream indexes not created")
	}
	if err := mongodb.NewMessageRepository(db).EnsureIndexes(indexCtx); err != nil {
		log.Warn().Err(err).Msg("message indexes not created")
	}
}
