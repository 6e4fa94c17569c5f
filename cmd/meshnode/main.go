package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/api"
	"github.com/meshtree/internal/config"
	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/mqttclient"
	"github.com/meshtree/internal/node"
	"github.com/meshtree/internal/sink"
	"github.com/meshtree/internal/storage"
	"github.com/meshtree/internal/websocket"
	"github.com/meshtree/pkg/models"
	"github.com/meshtree/pkg/network"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.File, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		logger.Logger.Fatal("Invalid node configuration", zap.Error(err))
	}
	neighbors, err := cfg.Neighbors()
	if err != nil {
		logger.Logger.Fatal("Invalid neighbor table", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Logger.Info("Starting node",
		zap.Uint16("id", nodeCfg.ID),
		zap.Stringer("role", nodeCfg.Role),
		zap.Stringer("address", nodeCfg.Address),
		zap.Int("neighbors", len(neighbors)))

	link := network.NewLink(nodeCfg.Address, cfg.Link.Listen, neighbors, logger.Named("link"))

	var (
		hub   *websocket.Hub
		store storage.Storage
		opts  = []node.Option{node.WithLogger(logger.Named("node"))}
	)
	if nodeCfg.Role.IsRoot() {
		var (
			samples *sink.Multi
			release func()
		)
		samples, hub, store, release = borderRouterSinks(ctx, cfg)
		opts = append(opts, node.WithSink(samples))
		defer release()
	}

	n := node.New(nodeCfg, node.NewEncodingTransport(link), node.NewMonotonicClock(), opts...)
	runner := node.NewRunner(n, cfg.NodeTiming())

	if err := link.Start(func(src, dst models.Address, payload []byte, rssi int) {
		runner.Deliver(node.Frame{Src: src, Dst: dst, Payload: payload, RSSI: rssi})
	}); err != nil {
		logger.Logger.Fatal("Failed to start link", zap.Error(err))
	}
	defer link.Stop()

	var srv *http.Server
	if cfg.API.Port > 0 {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.API.Port),
			Handler: api.NewRouter(api.NewHandler(runner, store, hub)),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Logger.Error("API server stopped", zap.Error(err))
			}
		}()
		logger.Logger.Info("API listening", zap.Int("port", cfg.API.Port))
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger.Error("Node stopped", zap.Error(err))
	}
	stop()
	logger.Logger.Info("Shutdown signal received, exiting...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}

// borderRouterSinks wires the configured sample sinks. Slow sinks run behind
// an async queue so the node goroutine never blocks on them. release blocks
// until those queues are drained after ctx is done, then closes what they
// write to.
func borderRouterSinks(ctx context.Context, cfg *config.Config) (*sink.Multi, *websocket.Hub, storage.Storage, func()) {
	samples := sink.NewMulti()
	if cfg.Sink.Stdout {
		samples.Add(sink.NewLine(os.Stdout))
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	samples.Add(sink.NewStream(hub))

	var (
		store    storage.Storage
		releases []func()
	)
	if cfg.Sink.ArchivePath != "" {
		lvl, err := storage.OpenLevelStorage(cfg.Sink.ArchivePath)
		if err != nil {
			logger.Logger.Fatal("Failed to open archive", zap.Error(err))
		}
		store = lvl
		archive := sink.NewAsync(sink.NewArchive(lvl), 0)
		go archive.Run(ctx)
		samples.Add(archive)
		releases = append(releases, func() {
			if err := archive.CloseAfterDrain(lvl); err != nil {
				logger.Logger.Warn("Failed to close archive", zap.Error(err))
			}
		})
	}

	if cfg.Sink.MQTTBroker != "" {
		mqttc, err := mqttclient.New(mqttclient.Options{
			BrokerURL: cfg.Sink.MQTTBroker,
			ClientID:  fmt.Sprintf("meshtree-br-%d-%d", cfg.Node.ID, time.Now().UnixNano()),
			Logger:    logger.Named("mqtt"),
		})
		if err != nil {
			logger.Logger.Fatal("MQTT client error", zap.Error(err))
		}
		pub := sink.NewAsync(sink.NewMQTT(mqttc, cfg.Sink.MQTTTopic), 0)
		go pub.Run(ctx)
		samples.Add(pub)
		releases = append(releases, func() {
			<-pub.Done()
			mqttc.Close()
		})
	}
	release := func() {
		for _, r := range releases {
			r()
		}
	}
	return samples, hub, store, release
}
