package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AsiwajuPseudo/contracts/internal/assist"
	"github.com/AsiwajuPseudo/contracts/internal/config"
	"github.com/AsiwajuPseudo/contracts/internal/contracts"
	"github.com/AsiwajuPseudo/contracts/internal/docstore"
	"github.com/AsiwajuPseudo/contracts/internal/history"
	"github.com/AsiwajuPseudo/contracts/internal/index"
	"github.com/AsiwajuPseudo/contracts/internal/render"
	"github.com/AsiwajuPseudo/contracts/pkg/db"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := index.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	idx := index.New(pool)

	docs, err := docstore.New(cfg.StoreDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StoreDir).Msg("open document store")
	}

	var hist contracts.HistoryStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		hist = history.NewRedis(client, cfg.HistoryTTL())
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis conversation history")
	} else {
		hist = history.NewMemory(cfg.HistoryTTL())
		log.Info().Msg("using in-memory conversation history")
	}

	var assistant contracts.Assistant
	if cfg.AssistBaseURL != "" {
		assistant = assist.New(cfg.AssistBaseURL)
		log.Info().Str("base_url", cfg.AssistBaseURL).Msg("assist service enabled")
	}

	svc := contracts.New(contracts.Deps{
		Docs:      docs,
		Index:     idx,
		Users:     idx,
		Renderer:  render.New(),
		Assistant: assistant,
		History:   hist,
		Logger:    log,
	})

	srv := NewServer(svc, log)
	addr := ":" + cfg.AppPort
	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
