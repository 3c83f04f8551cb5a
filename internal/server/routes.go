package server

import (
	"net/http"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
)

type ReadingView struct {
	State       domain.CoordinatorState `json:"state"`
	Reading     obis.Reading            `json:"reading"`
	LastError   string                  `json:"last_error,omitempty"`
	LastSuccess *time.Time              `json:"last_success,omitempty"`
}

type RefreshView struct {
	State     domain.CoordinatorState `json:"state"`
	LastError string                  `json:"last_error,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/reading", s.ReadingHandler)
	e.POST("/refresh", s.RefreshHandler)
	if s.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	if len(s.corsOrigins) == 0 {
		return e
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(e)
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ReadingHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetReadingRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	snapshot, ok := res.(domain.GetReadingResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	view := ReadingView{
		State:   snapshot.State,
		Reading: snapshot.Reading,
	}
	if view.Reading == nil {
		view.Reading = obis.Reading{}
	}
	if snapshot.LastError != nil {
		view.LastError = snapshot.LastError.Error()
	}
	if !snapshot.LastSuccess.IsZero() {
		view.LastSuccess = &snapshot.LastSuccess
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) RefreshHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RefreshRequest{}, s.requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}
	resp, ok := res.(domain.RefreshResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	view := RefreshView{State: resp.State}
	status := http.StatusOK
	if resp.HasResponseError() {
		view.LastError = resp.GetResponseError().Error()
		status = http.StatusBadGateway
	}
	return c.JSON(status, view)
}
