package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/obis2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	metricsHandler http.Handler
	requestTimeout time.Duration
	corsOrigins    []string
}

// NewServer builds the API server. metricsHandler may be nil.
func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, metricsHandler http.Handler) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, metricsHandler)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, metricsHandler http.Handler) *Server {
	return &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		masterActor:    masterActor,
		metricsHandler: metricsHandler,
		httpLog:        cfg.HttpLog,
		corsOrigins:    cfg.CorsOrigins,
		// a refresh may wait for a poll in progress plus its own
		requestTimeout: 2*time.Duration(cfg.Obis.TimeoutMillis)*time.Millisecond + 5*time.Second,
	}
}
