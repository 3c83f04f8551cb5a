package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	"github.com/berfenger/obis2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// InfluxActor writes every successful reading to the history sink. While a
// write is in flight only the newest pending reading is kept.
type InfluxActor struct {
	behavior       actor.Behavior
	writer         port.ReadingWriter
	deviceId       string
	timeout        time.Duration
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	pending        *domain.ReadingUpdatedEvent
	lastError      error
	logger         *zap.Logger
}

type writeResult struct {
	Error error
}

func NewInfluxActor(writer port.ReadingWriter, deviceId string, eventStream *eventstream.EventStream, logger *zap.Logger) *InfluxActor {
	act := &InfluxActor{
		behavior:    actor.NewBehavior(),
		writer:      writer,
		deviceId:    deviceId,
		timeout:     5 * time.Second,
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_INFLUX, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *InfluxActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InfluxActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("influx@default started")
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			if ev, ok := value.(domain.ReadingUpdatedEvent); ok {
				root.Send(self, ev)
			}
		})
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	case domain.ActorHealthRequest:
		ctx.Respond(state.healthResponse("idle"))
	case domain.ReadingUpdatedEvent:
		state.write(ctx, msg)
	default:
		state.logger.Debug("influx@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InfluxActor) WaitingWrite(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case writeResult:
		state.lastError = msg.Error
		if msg.Error != nil {
			state.logger.Error("influx@writing could not write reading", zap.Error(msg.Error))
		}
		state.behavior.UnbecomeStacked()
		if state.pending != nil {
			next := *state.pending
			state.pending = nil
			state.write(ctx, next)
		}
	case domain.ReadingUpdatedEvent:
		if state.pending != nil {
			state.logger.Debug("influx@writing dropping superseded reading")
		}
		state.pending = &msg
	case domain.ActorHealthRequest:
		ctx.Respond(state.healthResponse("writing"))
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("influx@writing recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InfluxActor) write(ctx actor.Context, ev domain.ReadingUpdatedEvent) {
	actorutil.NewBackgroundTaskNoError(ctx, func() *writeResult {
		wctx, cancel := context.WithTimeout(context.Background(), state.timeout)
		defer cancel()
		return &writeResult{Error: state.writer.WriteReading(wctx, state.deviceId, ev.Reading, ev.Time)}
	}).Recover(func(err error) writeResult {
		return writeResult{Error: err}
	}).WithTimeout(state.timeout + time.Second).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingWrite)
}

func (state *InfluxActor) healthResponse(st string) domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_INFLUX,
		Healthy: state.lastError == nil,
		State:   st,
	}
}

func (state *InfluxActor) stop() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
