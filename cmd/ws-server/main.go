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
	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
	"github.com/jobyojnahub-a11y/websevixof/internal/jobs"
	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/logging"
	"github.com/jobyojnahub-a11y/websevixof/internal/queue"
	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
	conversationservice "github.com/jobyojnahub-a11y/websevixof/internal/service/conversation"
	presenceservice "github.com/jobyojnahub-a11y/websevixof/internal/service/presence"
	"github.com/jobyojnahub-a11y/websevixof/internal/websocket"
)

const prefix = "/api/ws/v1"

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
	log.Info().Msg("database connected")

	redisClient := websocket.NewRedisClient(cfg.ChatRedisURL, cfg.ChatRedisPass)
	if redisClient != nil {
		pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		cancel()
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	issuer, err := internaljwt.NewIssuer(cfg.SocketTokenSecret, cfg.SocketTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init token issuer")
	}

	presence := presenceservice.New(db)
	conversations := conversationservice.New(db, presence)

	hub := websocket.NewHub(redisClient)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	events := realtime.NewRouter(presence, conversations, hub, cfg.HandlerTimeout)
	socket := websocket.NewHandler(ctx, hub, events, identity.NewVerifier(issuer), websocket.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RatePerSecond:  cfg.EventRatePerSecond,
		Burst:          cfg.EventBurst,
	})

	reaper := jobs.NewPresenceReaper(presence, hub, cfg.ReaperInterval, cfg.OfferExpiry, cfg.StaleSessionAfter)
	reaper.Start()
	defer reaper.Stop()

	queueManager := queue.NewRequestQueueManager(config.RequestQueueSize, config.RequestQueueWorkers)
	server := api.NewAPIServer(api.ServerOptions{
		ListenAddr: cfg.WSAddr(),
		Queue:      queueManager,
		CORS:       middleware.DefaultCORSConfig(cfg.AllowedOrigins),
	},
		router.UtilsRoutes(prefix),
		router.WebsocketRoutes(prefix, socket.ServeSocket),
		router.TokenRoutes(prefix, endpoints.NewTokenEndpoints(issuer, cfg.TokenIssuerKeyHash), cfg.TokenIssuerKeyHash),
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
		stop()
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	<-hubDone
	queueManager.Shutdown()
	log.Info().Msg("server stopped")
}
