package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/obis2mqtt/internal/adapter/actor"
	"github.com/berfenger/obis2mqtt/internal/config"
	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	"github.com/berfenger/obis2mqtt/internal/core/service"
	. "github.com/berfenger/obis2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type HTTPActorProvider func() *adactor.HTTPActor

// InfluxActorProvider is nil when the history sink is disabled.
type InfluxActorProvider func(*eventstream.EventStream) *adactor.InfluxActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	httpActor           *actor.PID
	mqttActor           *actor.PID
	coordinatorActor    *actor.PID
	influxActor         *actor.PID
	httpActorProvider   HTTPActorProvider
	mqttActorProvider   MQTTActorProvider
	influxActorProvider InfluxActorProvider
	recorder            port.PollRecorder
	logger              *zap.Logger
}

type healthCheckResult struct {
	expected       map[string]bool
	healthy        map[string]bool
	states         map[string]string
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, httpActorProvider HTTPActorProvider,
	mqttActorProvider MQTTActorProvider, influxActorProvider InfluxActorProvider, recorder port.PollRecorder, logger *zap.Logger) *MasterOfPuppetsActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		httpActorProvider:   httpActorProvider,
		mqttActorProvider:   mqttActorProvider,
		influxActorProvider: influxActorProvider,
		recorder:            recorder,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset(nil)

		// start HTTP child
		httpActorPID, err := state.startHTTPActor(ctx)
		if err != nil {
			panic(err)
		}
		state.httpActor = httpActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Influx child
		if state.influxActorProvider != nil {
			influxActorPID, err := state.startInfluxActor(ctx)
			if err != nil {
				panic(err)
			}
			state.influxActor = influxActorPID
		}

		// start Coordinator child, polls right away
		coordinatorActorPID, err := state.startCoordinatorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.coordinatorActor = coordinatorActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) healthTargets() map[string]*actor.PID {
	targets := map[string]*actor.PID{
		domain.ACTOR_ID_HTTP:        state.httpActor,
		domain.ACTOR_ID_MQTT:        state.mqttActor,
		domain.ACTOR_ID_COORDINATOR: state.coordinatorActor,
	}
	if state.influxActor != nil {
		targets[domain.ACTOR_ID_INFLUX] = state.influxActor
	}
	return targets
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		targets := state.healthTargets()
		state.currentHealthCheck.reset(targets)
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range targets {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.RefreshRequest:
		state.logger.Debug("master@default RefreshRequest")
		ctx.RequestWithCustomSender(state.coordinatorActor, msg, ctx.Sender())
	case domain.GetReadingRequest:
		ctx.RequestWithCustomSender(state.coordinatorActor, msg, ctx.Sender())
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default unknown command", zap.Error(err))
				return
			}
			switch pcmd := cmd.(type) {
			case domain.RefreshRequest:
				ctx.Send(state.coordinatorActor, pcmd)
			}
		}
	case domain.RefreshResponse:
		// answers of MQTT triggered refreshes
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_HTTP) {
			state.logger.Error("master@default http error")
			panic(errors.New("http terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.record(msg)
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startHTTPActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	httpProps := actor.PropsFromProducer(func() actor.Actor {
		return state.httpActorProvider()
	}, actor.WithSupervisor(supervisor))
	httpActorPID, err := ctx.SpawnNamed(httpProps, domain.ACTOR_ID_HTTP)
	if err != nil {
		return nil, err
	}

	return httpActorPID, nil
}

func (state *MasterOfPuppetsActor) startCoordinatorActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	policy := &service.DefaultPollPolicy{
		Interval: time.Duration(state.config.Obis.PollIntervalMillis) * time.Millisecond,
		Logger:   state.logger,
	}
	meterDevice := domain.MeterDevice(state.config.Obis.URL, state.config.Obis.DeviceName)
	timeout := time.Duration(state.config.Obis.TimeoutMillis) * time.Millisecond

	coordinatorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewCoordinatorActor(state.httpActor, policy, state.recorder, state.eventStream, meterDevice, timeout, state.logger)
	}, actor.WithSupervisor(supervisor))
	coordinatorActorPID, err := ctx.SpawnNamed(coordinatorProps, domain.ACTOR_ID_COORDINATOR)
	if err != nil {
		return nil, err
	}

	return coordinatorActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.coordinatorActor, state.mqttActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startInfluxActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	influxProps := actor.PropsFromProducer(func() actor.Actor {
		return state.influxActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	influxActorPID, err := ctx.SpawnNamed(influxProps, domain.ACTOR_ID_INFLUX)
	if err != nil {
		return nil, err
	}

	return influxActorPID, nil
}

func (state *healthCheckResult) reset(targets map[string]*actor.PID) {
	state.expected = map[string]bool{}
	for id := range targets {
		state.expected[id] = true
	}
	state.healthy = map[string]bool{}
	state.states = map[string]string{}
	state.checksReceived = 0
}

func (state *healthCheckResult) record(msg domain.ActorHealthResponse) {
	if !state.expected[msg.Id] {
		return
	}
	if _, seen := state.healthy[msg.Id]; !seen {
		state.checksReceived++
	}
	state.healthy[msg.Id] = msg.Healthy
	state.states[msg.Id] = msg.State
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.states[domain.ACTOR_ID_COORDINATOR],
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
