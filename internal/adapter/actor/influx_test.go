package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/util/actorutil"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryWriter struct {
	mu       sync.Mutex
	err      error
	written  []obis.Reading
	deviceId string
}

func (w *memoryWriter) WriteReading(_ context.Context, deviceId string, reading obis.Reading, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deviceId = deviceId
	w.written = append(w.written, reading)
	return w.err
}

func (w *memoryWriter) Close() {}

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func TestInfluxActorWritesReadings(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := &eventstream.EventStream{}
	writer := &memoryWriter{}

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewInfluxActor(writer, "obis_meter_1", es, logger)
	}))

	// wait for the subscription
	_, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(err)

	es.Publish(domain.ReadingUpdatedEvent{Reading: obis.TestReading(), Time: time.Now()})
	es.Publish(domain.CoordinatorStateChangedEvent{State: domain.COORDINATOR_STATE_READY})

	require.Eventually(func() bool {
		return writer.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal("obis_meter_1", writer.deviceId)

	context.Stop(pid)
	as.Shutdown()
}

func TestInfluxActorReportsWriteFailure(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := &eventstream.EventStream{}
	writer := &memoryWriter{err: errors.New("unauthorized")}

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewInfluxActor(writer, "obis_meter_1", es, logger)
	}))
	_, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(err)

	es.Publish(domain.ReadingUpdatedEvent{Reading: obis.TestReading(), Time: time.Now()})

	require.Eventually(func() bool {
		res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
		return err == nil && !res.(domain.ActorHealthResponse).Healthy
	}, 2*time.Second, 10*time.Millisecond)

	context.Stop(pid)
	as.Shutdown()
}
