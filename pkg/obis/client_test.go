package obis

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func statusServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestFetchReading(t *testing.T) {

	require := require.New(t)

	srv := statusServer(http.StatusOK, `{"1.8.0": 12345.678, "1.7.0": "5.0", "2.7.0": "0", "uptime": "0000:01:02:03"}`)
	defer srv.Close()

	client, err := CreateHTTPClient(srv.URL, time.Second, zap.NewNop(), nil)
	require.NoError(err)

	reading, err := client.Fetch(context.Background())
	require.NoError(err)

	v, ok := reading.Float("1.8.0")
	require.True(ok)
	require.InDelta(12345.678, v, 1e-9)

	text, ok := reading.Text("1.8.0")
	require.True(ok)
	require.Equal("12345.678", text, "numbers keep their wire representation")

	v, ok = reading.Float("1.7.0")
	require.True(ok)
	require.Equal(5.0, v)

	text, ok = reading.Text("uptime")
	require.True(ok)
	require.Equal("0000:01:02:03", text)
}

func TestFetchAuthError(t *testing.T) {

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := statusServer(status, `{}`)

		client, err := CreateHTTPClient(srv.URL, time.Second, nil, nil)
		require.NoError(t, err)

		_, err = client.Fetch(context.Background())
		srv.Close()

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr, "status %d", status)
		assert.Equal(t, status, authErr.StatusCode)
		assert.True(t, errors.Is(err, ErrClient))
		assert.True(t, IsAuthError(err))
		assert.False(t, IsCommunicationError(err))
	}
}

func TestFetchOtherStatusIsClientError(t *testing.T) {

	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := statusServer(status, `{"error": "nope"}`)

		client, err := CreateHTTPClient(srv.URL, time.Second, nil, nil)
		require.NoError(t, err)

		_, err = client.Fetch(context.Background())
		srv.Close()

		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr, "status %d", status)
		assert.Equal(t, status, clientErr.StatusCode)
		assert.False(t, IsAuthError(err))
		assert.False(t, IsCommunicationError(err))
		assert.True(t, errors.Is(err, ErrClient))
	}
}

func TestFetchTimeoutIsCommunicationError(t *testing.T) {

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := CreateHTTPClient(srv.URL, 50*time.Millisecond, nil, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(context.Background())

	require.Error(t, err)
	assert.True(t, IsCommunicationError(err))
	assert.True(t, errors.Is(err, ErrClient))
	assert.Less(t, time.Since(start), 2*time.Second, "timeout bounds the request")
}

func TestFetchConnectionRefusedIsCommunicationError(t *testing.T) {

	srv := statusServer(http.StatusOK, `{}`)
	endpoint := srv.URL
	srv.Close()

	client, err := CreateHTTPClient(endpoint, time.Second, nil, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	assert.True(t, IsCommunicationError(err))
}

// truncatedBodyServer announces a long body, sends part of it and resets the
// connection.
func truncatedBodyServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			return
		}
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 500\r\n\r\n")
		_, _ = buf.WriteString(`{"1.8.0": 1`)
		_ = buf.Flush()
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		_ = conn.Close()
	}))
}

func TestFetchResetMidBodyIsCommunicationError(t *testing.T) {

	srv := truncatedBodyServer()
	defer srv.Close()

	client, err := CreateHTTPClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, IsCommunicationError(err), "got %T: %v", err, err)
	assert.True(t, errors.Is(err, ErrClient))

	var clientErr *ClientError
	assert.False(t, errors.As(err, &clientErr))
}

func TestFetchMalformedBodyIsClientError(t *testing.T) {

	for _, body := range []string{`not json`, `[1, 2, 3]`, `null`} {
		srv := statusServer(http.StatusOK, body)

		client, err := CreateHTTPClient(srv.URL, time.Second, nil, nil)
		require.NoError(t, err)

		_, err = client.Fetch(context.Background())
		srv.Close()

		var clientErr *ClientError
		require.ErrorAs(t, err, &clientErr, "body %q", body)
		assert.Equal(t, 0, clientErr.StatusCode)
		assert.False(t, IsCommunicationError(err))
	}
}

func TestFetchIssuesOneGet(t *testing.T) {

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var recorded []string
	client, err := CreateHTTPClient(srv.URL, time.Second, nil, &Instrument{
		RecordTime: func(fnName string, _ time.Duration) {
			recorded = append(recorded, fnName)
		},
	})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "no internal retries")
	assert.Equal(t, []string{"Fetch"}, recorded)
}

func TestValidateURL(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(ValidateURL("http://192.168.1.20/obis.json"))
	assert.NoError(ValidateURL("https://meter.local:8443/api"))
	assert.Error(ValidateURL("ftp://meter.local/obis"))
	assert.Error(ValidateURL("meter.local/obis"))
	assert.Error(ValidateURL("http://"))

	_, err := CreateHTTPClient("not a url", time.Second, nil, nil)
	assert.Error(err)
}
