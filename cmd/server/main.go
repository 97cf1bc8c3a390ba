package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/egress"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/gateway"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/hub"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/market"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/repository"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	registry, err := market.NewRegistry(cfg.Market.Tickers, cfg.Market.SeedPrices)
	if err != nil {
		logger.Fatal("Failed to build instrument registry", zap.Error(err))
	}

	wsHub := hub.NewHub(registry, logger)

	engine := market.NewEngine(
		registry,
		logger,
		time.Duration(cfg.Market.TickIntervalMS)*time.Millisecond,
		cfg.Market.PerturbationPct,
		market.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		market.RealClock{},
	)
	engine.AddSink(wsHub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional last-price mirror for external consumers
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		mirror := repository.NewMirror(repository.NewRedisStore(rdb), logger)
		engine.AddSink(mirror)
		go mirror.Run(ctx)
		logger.Info("Redis mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Optional tick egress for history/analytics pipelines
	if cfg.Kafka.Enabled {
		creator := egress.NewTopicCreator(logger, &egress.RealKafkaDialer{Dialer: kafka.DefaultDialer}, egress.RealClock{})
		creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic)

		publisher := egress.NewPublisher(egress.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		engine.AddSink(publisher)
		go publisher.Run(ctx)
		logger.Info("Kafka egress enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	go engine.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "OK",
			"message": "Stock price server running",
			"tickers": registry.List(),
		})
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(req, w)
		if err != nil {
			logger.Warn("Upgrade failed", zap.Error(err))
			return
		}

		client := gateway.NewClient(conn, wsHub, logger)
		client.Start()
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: r}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	logger.Info("Shutdown Complete")
}
