package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	authservice "tokengate/internal/auth/service"
	"tokengate/internal/cache"
	"tokengate/internal/config"
	"tokengate/internal/db"
	"tokengate/internal/metrics"
	"tokengate/internal/security"
	tokenrepo "tokengate/internal/token/repository"
	userrepo "tokengate/internal/user/repository"
	"tokengate/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	metrics.Init(prometheus.DefaultRegisterer)

	var revocations authservice.RevocationList
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer client.Close()
		revocations = cache.NewRevocationList(client, "tokengate", cfg.AccessTTL())
		log.Info().Str("addr", cfg.RedisAddr).Msg("access-revocation list enabled")
	}

	provider := security.NewTokenProvider(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.JWTIssuer,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	svc := authservice.NewAuthService(
		userrepo.NewPostgresRepository(conn),
		tokenrepo.NewPostgresRepository(conn),
		security.NewHasher(cfg.BcryptCost),
		provider,
		revocations,
	)
	cookies := web.NewCookieManager([]byte(cfg.CookieSecret), cfg.Production())

	e := web.NewServer(web.NewAuthAPI(svc, cookies))

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := e.Start(cfg.HTTPAddr); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down http server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("http server stopped")
}
