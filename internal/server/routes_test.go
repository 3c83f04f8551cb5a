package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/util"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, receive actor.ReceiveFunc, metrics http.Handler, corsOrigins ...string) http.Handler {
	as := actor.NewActorSystem()
	pid := as.Root.Spawn(actor.PropsFromFunc(receive))
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	cfg := util.LoadTestConfig()
	cfg.CorsOrigins = corsOrigins
	return newServer(cfg, as.Root, pid, metrics).RegisterRoutes()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.ActorHealthRequest); ok {
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: true})
		}
	}, nil)

	rec := serve(h, http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestReading(t *testing.T) {
	success := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	h := newTestServer(t, func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.GetReadingRequest); ok {
			ctx.Respond(domain.GetReadingResponse{
				Reading:     obis.TestReading(),
				State:       domain.COORDINATOR_STATE_FAILED_TRANSIENT,
				LastError:   errors.New("connection refused"),
				LastSuccess: success,
			})
		}
	}, nil)

	rec := serve(h, http.MethodGet, "/reading")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		State       string         `json:"state"`
		Reading     map[string]any `json:"reading"`
		LastError   string         `json:"last_error"`
		LastSuccess time.Time      `json:"last_success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "failed_transient", view.State)
	assert.Equal(t, "connection refused", view.LastError)
	assert.True(t, success.Equal(view.LastSuccess))
	assert.Equal(t, "1250", view.Reading["1.7.0"])
	assert.Equal(t, 12345.678, view.Reading["1.8.0"])
}

func TestReadingBeforeFirstPoll(t *testing.T) {
	h := newTestServer(t, func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.GetReadingRequest); ok {
			ctx.Respond(domain.GetReadingResponse{State: domain.COORDINATOR_STATE_IDLE})
		}
	}, nil)

	rec := serve(h, http.MethodGet, "/reading")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle","reading":{}}`, rec.Body.String())
}

func TestRefresh(t *testing.T) {
	h := newTestServer(t, func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.RefreshRequest); ok {
			ctx.Respond(domain.RefreshResponse{State: domain.COORDINATOR_STATE_READY})
		}
	}, nil)

	rec := serve(h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"ready"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshFailure(t *testing.T) {
	h := newTestServer(t, func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.RefreshRequest); ok {
			ctx.Respond(domain.RefreshResponse{
				ActorResponseMixIn: domain.ErrorResponse(&obis.AuthError{StatusCode: http.StatusUnauthorized}),
				State:              domain.COORDINATOR_STATE_FAILED_AUTH,
			})
		}
	}, nil)

	rec := serve(h, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"failed_auth"`)
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t, func(ctx actor.Context) {}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("obis2mqtt_polls_total 1\n"))
	}))

	rec := serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "obis2mqtt_polls_total"))

	noMetrics := newTestServer(t, func(ctx actor.Context) {}, nil)
	rec = serve(noMetrics, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	receive := func(ctx actor.Context) {
		if _, ok := ctx.Message().(domain.GetReadingRequest); ok {
			ctx.Respond(domain.GetReadingResponse{State: domain.COORDINATOR_STATE_READY})
		}
	}

	h := newTestServer(t, receive, nil, "http://dashboard.local")
	req := httptest.NewRequest(http.MethodGet, "/reading", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/reading", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// disabled by default
	h = newTestServer(t, receive, nil)
	req = httptest.NewRequest(http.MethodGet, "/reading", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
