package port

import (
	"context"
	"time"

	"github.com/berfenger/obis2mqtt/pkg/obis"
)

type ReadingWriter interface {
	WriteReading(ctx context.Context, deviceId string, reading obis.Reading, ts time.Time) error
	Close()
}
