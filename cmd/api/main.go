package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/obis2mqtt/internal/adapter/actor"
	"github.com/berfenger/obis2mqtt/internal/config"
	"github.com/berfenger/obis2mqtt/internal/core/actor"
	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/influx"
	"github.com/berfenger/obis2mqtt/internal/metrics"
	"github.com/berfenger/obis2mqtt/internal/server"
	"github.com/berfenger/obis2mqtt/internal/util/actorutil"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	slog.Info("Using", "config", cfg.Redacted())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	eventStream := &eventstream.EventStream{}

	m := metrics.New()
	metricsSub := m.Subscribe(eventStream)

	httpProv, err := httpActorProvider(cfg, m, logger)
	if err != nil {
		slog.Error("obis client", "error", err)
		os.Exit(1)
	}

	influxProv, closeInflux := influxActorProvider(cfg, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, eventStream, httpProv, mqttActorProvider(cfg, logger), influxProv, m, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		slog.Error("master actor", "error", err)
		os.Exit(1)
	}

	server := server.NewServer(*cfg, ctx, pid, m.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	_ = ctx.StopFuture(pid).Wait()
	eventStream.Unsubscribe(metricsSub)
	closeInflux()
	as.Shutdown()
}

func httpActorProvider(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (actor.HTTPActorProvider, error) {

	timeout := time.Duration(cfg.Obis.TimeoutMillis) * time.Millisecond

	client, err := obis.CreateHTTPClient(cfg.Obis.URL, timeout, logger, m.Instrument())
	if err != nil {
		return nil, err
	}

	return func() *adactor.HTTPActor {
		return adactor.NewHTTPActor(client, timeout, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func influxActorProvider(cfg *config.Config, logger *zap.Logger) (actor.InfluxActorProvider, func()) {
	if !cfg.Influx.Enable {
		return nil, func() {}
	}

	writer := influx.NewWriter(cfg.Influx, logger)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := writer.Ping(pingCtx); err != nil {
		logger.Warn("influx not reachable yet", zap.Error(err))
	}

	deviceId := domain.MeterDevice(cfg.Obis.URL, cfg.Obis.DeviceName).Id
	return func(es *eventstream.EventStream) *adactor.InfluxActor {
		return adactor.NewInfluxActor(writer, deviceId, es, logger)
	}, writer.Close
}
