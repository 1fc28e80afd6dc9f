package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/api"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/endpoints"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/middleware"
	"github.com/jobyojnahub-a11y/websevixof/internal/api/router"
	"github.com/jobyojnahub-a11y/websevixof/internal/config"
	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/logging"
	"github.com/jobyojnahub-a11y/websevixof/internal/queue"
	conversationservice "github.com/jobyojnahub-a11y/websevixof/internal/service/conversation"
	presenceservice "github.com/jobyojnahub-a11y/websevixof/internal/service/presence"
	"github.com/jobyojnahub-a11y/websevixof/internal/websocket"
)

const prefix = "/api/admin/v1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(ctx, cfg.Database())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init database")
	}
	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	// Admin actions reach sockets only through Redis; without it they are
	// stored but not pushed.
	redisClient := websocket.NewRedisClient(cfg.ChatRedisURL, cfg.ChatRedisPass)
	if redisClient == nil {
		log.Warn().Msg("CHAT_REDIS_URL not set, admin actions will not be pushed to sockets")
	} else {
		defer redisClient.Close()
	}

	issuer, err := internaljwt.NewIssuer(cfg.SocketTokenSecret, cfg.SocketTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init token issuer")
	}

	presence := presenceservice.New(db)
	conversations := conversationservice.New(db, presence)
	admin := endpoints.NewAdminEndpoints(presence, conversations, websocket.NewPublisher(redisClient))

	queueManager := queue.NewRequestQueueManager(config.RequestQueueSize, config.RequestQueueWorkers)
	server := api.NewAPIServer(api.ServerOptions{
		ListenAddr: cfg.AdminAddr(),
		Queue:      queueManager,
		CORS:       middleware.DefaultCORSConfig(cfg.AllowedOrigins),
	},
		router.UtilsRoutes(prefix),
		router.AdminRoutes(prefix, admin, issuer),
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	queueManager.Shutdown()
	log.Info().Msg("server stopped")
}
