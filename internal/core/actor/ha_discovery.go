package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/obis2mqtt/internal/config"
	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/events"
	"github.com/berfenger/obis2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the entities once the first poll has completed,
// then replays the current values so entities do not wait for the next tick.
type HADiscoveryActor struct {
	config                  *config.Config
	behavior                actor.Behavior
	stash                   *actorutil.Stash
	coordinatorActor        *actor.PID
	mqttActor               *actor.PID
	eventStream             *eventstream.EventStream
	eventStreamSub          *eventstream.Subscription
	coordinatorActorHealthy bool
	mqttActorHealthy        bool
	healthyRecv             int

	logger *zap.Logger
}

type coordinatorSettled struct {
}

func NewHADiscoveryActor(config *config.Config, coordinatorActor *actor.PID, mqttActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:           config,
		coordinatorActor: coordinatorActor,
		mqttActor:        mqttActor,
		eventStream:      eventStream,
		behavior:         actor.NewBehavior(),
		stash:            &actorutil.Stash{},
		logger:           actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Coordinator and MQTT actor healthy
		state.healthyRecv = 0
		state.coordinatorActorHealthy = false
		state.mqttActorHealthy = false
		// Coordinator Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_COORDINATOR,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_COORDINATOR:
				state.coordinatorActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.coordinatorActorHealthy && state.mqttActorHealthy {
				// wait for the first poll outcome
				self := ctx.Self()
				root := ctx.ActorSystem().Root
				state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
					if ev, ok := value.(domain.CoordinatorStateChangedEvent); ok && settled(ev.State) {
						root.Send(self, coordinatorSettled{})
					}
				})
				state.requestSnapshot(ctx)
				state.behavior.Become(state.WaitingFirstPollReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Coordinator Actor are not healthy"))
			}
		}
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingFirstPollReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case coordinatorSettled:
		state.logger.Debug("hadiscovery@waitingPoll: coordinator settled")
		state.requestSnapshot(ctx)
	case domain.GetReadingResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		if !settled(msg.State) {
			state.logger.Debug("hadiscovery@waitingPoll: first poll pending", zap.String("state", string(msg.State)))
			return
		}
		state.unsubscribe()
		state.publishDiscovery(ctx, msg)
		state.behavior.Become(state.Done)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@waitingPoll: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			state.logger.Error("hadiscovery@done: discovery publish failed", zap.Error(msg.GetResponseError()))
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "done",
		})
	}
}

func (state *HADiscoveryActor) requestSnapshot(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.coordinatorActor, domain.GetReadingRequest{}, 2*time.Second), func(err error) any {
		return domain.GetReadingResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	})
}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context, snapshot domain.GetReadingResponse) {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	meterDevice := domain.MeterDevice(state.config.Obis.URL, state.config.Obis.DeviceName)
	meterDevice.ViaDevice = bridgeDevice.Id

	var meterSensors []domain.GenericSensor
	meterSensors = append(meterSensors, domain.MeterSensors(meterDevice)...)
	meterSensors = append(meterSensors, domain.MeterBinarySensors(meterDevice)...)
	meterSensors = append(meterSensors, domain.CoordinatorSensors(meterDevice)...)
	for i := range meterSensors {
		// full device block only once
		if i > 0 {
			meterSensors[i].Device = domain.IdDevice(meterDevice)
		}
		sensors = append(sensors, meterSensors[i])
	}

	buttons := domain.MeterButtons(domain.IdDevice(meterDevice))

	state.logger.Info("hadiscovery@waitingPoll: publishing discovery", zap.Int("sensors", len(sensors)), zap.Int("buttons", len(buttons)))
	ctx.Request(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: sensors,
		Buttons: buttons,
	})

	// replay current values
	var updates []any
	updates = append(updates, events.ReadingToUpdateEvents(snapshot.Reading, meterDevice)...)
	updates = append(updates, events.CoordinatorStateUpdateEvents(snapshot.State)...)
	for _, ev := range updates {
		if sensorEv, ok := ev.(domain.SensorUpdateEvent); ok {
			ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{
				Event: sensorEv,
			})
		}
	}
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}

func settled(st domain.CoordinatorState) bool {
	return st != domain.COORDINATOR_STATE_IDLE && st != domain.COORDINATOR_STATE_POLLING
}
