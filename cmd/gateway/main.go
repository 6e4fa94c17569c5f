package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/api"
	"github.com/meshtree/internal/config"
	"github.com/meshtree/internal/gateway"
	"github.com/meshtree/internal/ingestion"
	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/mqttclient"
	"github.com/meshtree/internal/sink"
	"github.com/meshtree/internal/storage"
	"github.com/meshtree/internal/websocket"
)

const reconnectDelay = 2 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway configuration file")
	mode := flag.String("mode", "", "bridge | collect (overrides gateway.mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Gateway.Mode = *mode
	}
	if err := logger.Init(cfg.Log.File, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Logger.Info("Starting gateway",
		zap.String("mode", cfg.Gateway.Mode),
		zap.String("broker", cfg.Sink.MQTTBroker))

	switch cfg.Gateway.Mode {
	case "bridge":
		err = runBridge(ctx, cfg)
	case "collect":
		err = runCollect(ctx, cfg)
	default:
		err = fmt.Errorf("unknown mode %q (must be: bridge or collect)", cfg.Gateway.Mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger.Fatal("Gateway stopped", zap.Error(err))
	}
	logger.Logger.Info("Shutting down...")
}

func newMQTT(cfg *config.Config, role string) (*mqttclient.Client, error) {
	if cfg.Sink.MQTTBroker == "" {
		return nil, errors.New("sink.mqtt_broker is required")
	}
	return mqttclient.New(mqttclient.Options{
		BrokerURL: cfg.Sink.MQTTBroker,
		ClientID:  fmt.Sprintf("meshtree-%s-%d", role, time.Now().UnixNano()),
		Logger:    logger.Named("mqtt"),
	})
}

// runBridge reads the border router console and republishes every sample
// line to MQTT.
func runBridge(ctx context.Context, cfg *config.Config) error {
	mqttc, err := newMQTT(cfg, "bridge")
	if err != nil {
		return err
	}
	defer mqttc.Close()

	samples := sink.NewMulti(sink.NewMQTT(mqttc, cfg.Sink.MQTTTopic))
	if cfg.Sink.Stdout {
		samples.Add(sink.NewLine(os.Stdout))
	}
	bridge := gateway.NewBridge(samples)

	for {
		console, err := openConsole(ctx, cfg.Gateway)
		if err != nil {
			logger.Logger.Warn("Console unavailable", zap.Error(err))
		} else {
			logger.Logger.Info("Console connected")
			err = runConsole(ctx, bridge, console)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Logger.Warn("Console read failed", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func openConsole(ctx context.Context, gw config.GatewaySection) (io.ReadCloser, error) {
	if gw.SerialPort != "" {
		return openSerial(gw.SerialPort, gw.BaudRate)
	}
	return gateway.DialTCP(ctx, gw.Address)
}

// runConsole bridges one console session, closing it when ctx is done so the
// blocked read returns.
func runConsole(ctx context.Context, bridge *gateway.Bridge, console io.ReadCloser) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			console.Close()
		case <-done:
		}
	}()
	defer console.Close()
	if err := bridge.Run(ctx, console); err != nil {
		return err
	}
	return ctx.Err()
}

// runCollect archives records published by border routers and serves the
// query API and live stream.
func runCollect(ctx context.Context, cfg *config.Config) error {
	mqttc, err := newMQTT(cfg, "collect")
	if err != nil {
		return err
	}
	defer mqttc.Close()

	var store storage.Storage
	if cfg.Sink.ArchivePath != "" {
		lvl, err := storage.OpenLevelStorage(cfg.Sink.ArchivePath)
		if err != nil {
			return err
		}
		store = lvl
	} else {
		store = storage.NewMemoryStorage()
	}
	defer store.Close()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	if err := ingestion.New(mqttc, store, cfg.Sink.MQTTTopic).WithForwarder(hub).Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: api.NewRouter(api.NewHandler(nil, store, hub)),
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Logger.Info("Query API listening", zap.Int("port", cfg.API.Port))

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("api server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return ctx.Err()
}
