package influx

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/obis2mqtt/internal/config"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	MEASUREMENT   = "obis_reading"
	TAG_DEVICE_ID = "device_id"
)

var ErrNoNumericFields = errors.New("reading has no numeric values")

type Writer struct {
	client influxdb2.Client
	org    string
	bucket string
	logger *zap.Logger
}

func NewWriter(cfg config.InfluxConfig, logger *zap.Logger) *Writer {
	return &Writer{
		client: influxdb2.NewClient(cfg.URL, cfg.Token),
		org:    cfg.Org,
		bucket: cfg.Bucket,
		logger: logger.With(zap.String("target", "influx")),
	}
}

// Ping checks the server health.
func (w *Writer) Ping(ctx context.Context) error {
	health, err := w.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "pass" {
		msg := "influxdb health check failed"
		if health.Message != nil {
			msg = *health.Message
		}
		return errors.New(msg)
	}
	return nil
}

func (w *Writer) WriteReading(ctx context.Context, deviceId string, reading obis.Reading, ts time.Time) error {
	p, err := ReadingPoint(deviceId, reading, ts)
	if err != nil {
		w.logger.Debug("influx: skipping reading", zap.Error(err))
		return nil
	}
	return w.client.WriteAPIBlocking(w.org, w.bucket).WritePoint(ctx, p)
}

func (w *Writer) Close() {
	w.client.Close()
}

// ReadingPoint keeps the numeric values of a reading as fields named after
// their OBIS key.
func ReadingPoint(deviceId string, reading obis.Reading, ts time.Time) (*write.Point, error) {
	fields := make(map[string]interface{})
	for key := range reading {
		if v, ok := reading.Float(key); ok {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		return nil, ErrNoNumericFields
	}
	return influxdb2.NewPoint(
		MEASUREMENT,
		map[string]string{TAG_DEVICE_ID: deviceId},
		fields,
		ts,
	), nil
}

// ensure interface compliance
var _ port.ReadingWriter = (*Writer)(nil)
