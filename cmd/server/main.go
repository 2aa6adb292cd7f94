package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/logging"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (watched for changes)")
	addr := flag.String("addr", "", "listen address, overrides the config port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Port = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatrelay: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, configPath string, logger *zap.Logger) error {
	logger.Info("starting chatrelay")
	server.SetConfig(runtimeConfig(cfg))

	var opts []chat.Option
	routes := server.Routes{}
	opts = append(opts, chat.WithLogger(logger.Named("room")))
	if cfg.Metrics.Enabled {
		m := metrics.New()
		opts = append(opts, chat.WithMetrics(m))
		routes.MetricsPath = cfg.Metrics.Path
		routes.MetricsHandler = m.Handler()
	}

	room := chat.NewRoom(registry.New(), opts...)
	hub := server.NewHub(room, logger.Named("hub"))
	httpServer := server.CreateServer(cfg.Server.Port, server.SetupRoutes(hub, routes))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartServer(httpServer, logger)
	})

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, logger, func(next *config.Config) {
				// Listen address, logging and metrics are fixed at startup.
				server.SetConfig(runtimeConfig(next))
				logger.Info("applied reloaded config to new connections")
			})
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout, logger)
		if hubErr := hub.Shutdown(cfg.Server.ShutdownTimeout); hubErr != nil && err == nil {
			err = hubErr
		}
		return err
	})

	return g.Wait()
}

// runtimeConfig extracts the settings the websocket layer applies per connection.
func runtimeConfig(cfg *config.Config) *server.Config {
	s := cfg.Server
	return &server.Config{
		Port:           s.Port,
		AllowedOrigins: s.AllowedOrigins,
		MaxMessageSize: s.MaxMessageSize,
		RateLimit: server.RateLimitConfig{
			Burst:          s.RateLimit.Burst,
			RefillInterval: s.RateLimit.RefillInterval,
		},
		SendTimeout: s.SendTimeout,
		SendBuffer:  s.SendBuffer,
	}
}
