package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glorylive/internal/config"
	"glorylive/internal/controller"
	"glorylive/internal/gateway"
	"glorylive/internal/match"
	"glorylive/internal/pubsub"
	"glorylive/internal/records"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to Redis")
	}

	var transport pubsub.Transport
	switch cfg.Transport {
	case "nats":
		nt, err := pubsub.NewNATSTransport(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to NATS")
		}
		defer nt.Close()
		transport = nt
	default:
		transport = pubsub.NewRedisTransport(redisClient)
	}

	var recorder match.ScoreRecorder
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		recorder = records.NewRepository(pool)
	}

	clock := clockwork.NewRealClock()
	store := match.NewStateStore(redisClient)
	publisher := match.NewChannelPublisher(transport)
	arbitrator := match.NewArbitrator(store, publisher, clock)
	timers := match.NewTimerService(store, publisher, clock)
	scores := match.NewScoreBroadcaster(store, publisher, recorder)
	processor := match.NewProcessor(arbitrator, store, publisher)

	hub := gateway.NewHub(transport)
	wsHandler := gateway.NewHandler(hub, processor, store, gateway.DefaultConnectionConfig())
	ctrl := controller.New(timers, scores)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	ctrl.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: cors.AllowAll().Handler(mux),
	}

	log.Info().
		Str("port", cfg.Server.Port).
		Str("transport", cfg.Transport).
		Bool("durable_records", recorder != nil).
		Msg("starting live match server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}
