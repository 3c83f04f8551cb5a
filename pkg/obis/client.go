package obis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
)

type Client interface {
	Fetch(ctx context.Context) (Reading, error)
}

type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// HTTPClient reads a Reading from a JSON endpoint. Each Fetch issues exactly
// one GET and never retries.
type HTTPClient struct {
	url        string
	timeout    time.Duration
	rest       *resty.Client
	instrument []Instrument
}

func CreateHTTPClient(endpoint string, timeout time.Duration, logger *zap.Logger, instrumentation *Instrument) (*HTTPClient, error) {
	if err := ValidateURL(endpoint); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rest := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	// instrumentation
	var inst []Instrument
	if logger != nil {
		inst = append(inst, *traceLoggerInstrumentation(logger.With(zap.String("target", "obis"))))
		rest.SetLogger(logger.With(zap.String("target", "resty")).Sugar())
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &HTTPClient{
		url:        endpoint,
		timeout:    timeout,
		rest:       rest,
		instrument: inst,
	}, nil
}

func (c *HTTPClient) URL() string {
	return c.url
}

// Fetch reads the whole body before decoding it, so a connection dropped
// mid-body surfaces as a transport failure.
func (c *HTTPClient) Fetch(ctx context.Context) (Reading, error) {
	defer RecordTimer("Fetch", c.instrument)()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.rest.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		// dns, dial, reset, truncated body, timeout
		return nil, &CommunicationError{Err: err}
	}

	if err := verifyResponse(resp.StatusCode()); err != nil {
		return nil, err
	}

	return decodeReading(resp.Body())
}

func decodeReading(body []byte) (Reading, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var reading Reading
	if err := dec.Decode(&reading); err != nil {
		return nil, &ClientError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if reading == nil {
		return nil, &ClientError{Err: errors.New("response is not a JSON object")}
	}
	return reading, nil
}

func verifyResponse(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status}
	case status < 200 || status > 299:
		return &ClientError{
			StatusCode: status,
			Err:        errors.New(http.StatusText(status)),
		}
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid obis url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid obis url %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid obis url %q: missing host", endpoint)
	}
	return nil
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(name, duration)
			}
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *Instrument {
	return &Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("obis fetch", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

// ensure interface compliance
var _ Client = (*HTTPClient)(nil)
