package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/channel"
	"github.com/mcdev12/colorgrid/internal/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := gateway.DefaultConfig()
	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		loaded, err := gateway.LoadConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
		}
		cfg = loaded
	}
	if port := os.Getenv("GATEWAY_PORT"); port != "" {
		cfg.Port = port
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATSURL = url
	}

	nc, err := channel.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Str("nats_url", cfg.NATSURL).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	manager := gateway.NewManager(func(roomCode string) (channel.Channel, error) {
		return channel.NewNATS(nc, roomCode), nil
	}, cfg.Connection)

	mux := http.NewServeMux()
	gateway.NewHandler(manager).RegisterRoutes(mux)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("nats_url", cfg.NATSURL).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
}
