package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/events"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	. "github.com/berfenger/obis2mqtt/internal/util/actorutil"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// CoordinatorActor polls the endpoint through the http actor and keeps the
// last good Reading. Polls never overlap.
type CoordinatorActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	cancelTick   scheduler.CancelFunc
	stash        *Stash
	httpActor    *actor.PID
	policy       port.PollPolicy
	recorder     port.PollRecorder
	eventStream  *eventstream.EventStream
	meterDevice  domain.Device
	fetchTimeout time.Duration

	reading     obis.Reading
	state       domain.CoordinatorState
	lastError   error
	lastSuccess time.Time
	// refresh requesters waiting on the poll in flight
	waiters []*actor.PID

	logger *zap.Logger
}

type pollTick struct {
}

// refresh requests queued behind a poll in flight
const maxPendingRefresh = 8

func NewCoordinatorActor(httpActor *actor.PID, policy port.PollPolicy, recorder port.PollRecorder, eventStream *eventstream.EventStream,
	meterDevice domain.Device, fetchTimeout time.Duration, logger *zap.Logger) *CoordinatorActor {
	act := &CoordinatorActor{
		httpActor:    httpActor,
		policy:       policy,
		recorder:     recorder,
		eventStream:  eventStream,
		meterDevice:  meterDevice,
		fetchTimeout: fetchTimeout,
		stash:        &Stash{Limit: maxPendingRefresh},
		reading:      obis.Reading{},
		state:        domain.COORDINATOR_STATE_IDLE,
		logger:       ActorLogger(domain.ACTOR_ID_COORDINATOR, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CoordIdleState{
		actor: act,
	})
	return act
}

func (state *CoordinatorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type CoordIdleState struct {
	ActorState
	actor *CoordinatorActor
}

func (state CoordIdleState) Name() string {
	return string(domain.COORDINATOR_STATE_IDLE)
}

func (state CoordIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("coordinator@idle started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		// first refresh right away
		ctx.Send(ctx.Self(), pollTick{})
	default:
		state.actor.receiveSettled(ctx, msg)
	}
}

// Ready state

type CoordReadyState struct {
	ActorState
	actor *CoordinatorActor
}

func (state CoordReadyState) Name() string {
	return string(domain.COORDINATOR_STATE_READY)
}

func (state CoordReadyState) Receive(ctx actor.Context) {
	state.actor.receiveSettled(ctx, ctx.Message())
}

// Failed state

type CoordFailedState struct {
	ActorState
	actor *CoordinatorActor
	kind  domain.CoordinatorState
}

func (state CoordFailedState) Name() string {
	return string(state.kind)
}

func (state CoordFailedState) Receive(ctx actor.Context) {
	state.actor.receiveSettled(ctx, ctx.Message())
}

// receiveSettled handles every state but polling.
func (state *CoordinatorActor) receiveSettled(ctx actor.Context, message any) {
	name := state.StateName()
	switch msg := message.(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug(fmt.Sprintf("coordinator@%s: ActorHealthRequest", name))
		ctx.Respond(state.healthResponse())
	case domain.GetReadingRequest:
		ForRequest(msg).Respond(ctx, state.snapshot())
	case pollTick:
		state.logger.Debug(fmt.Sprintf("coordinator@%s tick", name))
		state.cancelTick = nil
		state.startPoll(ctx)
	case domain.RefreshRequest:
		state.logger.Info(fmt.Sprintf("coordinator@%s manual refresh", name))
		if replyTo := ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			state.waiters = append(state.waiters, replyTo)
		}
		state.startPoll(ctx)
	case *actor.Stopping:
		state.stopTicks()
	case *actor.Restarting:
		state.stopTicks()
	case domain.FetchReadingResponse:
		// late answer of a poll abandoned by a restart
		state.logger.Debug(fmt.Sprintf("coordinator@%s: stale FetchReadingResponse", name))
	default:
		state.logger.Debug(fmt.Sprintf("coordinator@%s recv", name), zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CoordinatorActor) startPoll(ctx actor.Context) {
	// a manual refresh replaces the pending tick, the next one is scheduled
	// when this poll completes
	state.stopTicks()

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.httpActor, domain.FetchReadingRequest{}, state.fetchTimeout+2*time.Second), func(err error) any {
		return domain.FetchReadingResponse{
			ActorResponseMixIn: domain.ErrorResponse(&obis.CommunicationError{Err: err}),
		}
	})

	state.setState(domain.COORDINATOR_STATE_POLLING, nil)
	state.Become(CoordPollingState{
		actor: state,
	})
}

// Polling state

type CoordPollingState struct {
	ActorState
	actor *CoordinatorActor
}

func (state CoordPollingState) Name() string {
	return string(domain.COORDINATOR_STATE_POLLING)
}

func (state CoordPollingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.FetchReadingResponse:
		state.actor.logger.Debug("coordinator@polling FetchReadingResponse", zap.Bool("error", msg.HasResponseError()))
		next := state.actor.completePoll(ctx, msg)
		state.actor.Become(next)
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(state.actor.healthResponse())
	case domain.GetReadingRequest:
		ForRequest(msg).Respond(ctx, state.actor.snapshot())
	case pollTick:
		state.actor.logger.Debug("coordinator@polling tick dropped")
	case *actor.Stopping:
		state.actor.stopTicks()
	case *actor.Restarting:
		state.actor.stopTicks()
	default:
		state.actor.logger.Debug("coordinator@polling stash", zap.String("type", fmt.Sprintf("%T", msg)))
		if state.actor.stash.Stash(ctx, msg) {
			state.actor.logger.Warn("coordinator@polling too many pending requests, oldest dropped")
		}
	}
}

func (state *CoordinatorActor) completePoll(ctx actor.Context, resp domain.FetchReadingResponse) ActorState {
	err := resp.GetResponseError()
	outcome := state.policy.Classify(err)

	if err == nil {
		now := time.Now()
		// stored and published readings are never mutated
		state.reading = resp.Reading.Clone()
		state.lastSuccess = now
		state.publish(domain.ReadingUpdatedEvent{
			Reading: state.reading,
			Time:    now,
		})
		for _, ev := range events.ReadingToUpdateEvents(state.reading, state.meterDevice) {
			state.publish(ev)
		}
	}
	state.setState(outcome, err)

	if state.recorder != nil {
		state.recorder.RecordPoll(outcome)
	}

	// answer manual refresh requesters
	for _, waiter := range state.waiters {
		ctx.Send(waiter, domain.RefreshResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			State:              outcome,
		})
	}
	state.waiters = nil

	if delay, ok := state.policy.NextPoll(outcome); ok {
		state.cancelTick = state.scheduler.RequestOnce(delay, ctx.Self(), pollTick{})
	}

	switch outcome {
	case domain.COORDINATOR_STATE_READY:
		return CoordReadyState{actor: state}
	default:
		return CoordFailedState{actor: state, kind: outcome}
	}
}

func (state *CoordinatorActor) setState(next domain.CoordinatorState, err error) {
	state.state = next
	if next.Failed() {
		state.lastError = err
	} else if next == domain.COORDINATOR_STATE_READY {
		state.lastError = nil
	}
	state.publish(domain.CoordinatorStateChangedEvent{
		State: next,
		Error: err,
	})
	for _, ev := range events.CoordinatorStateUpdateEvents(next) {
		state.publish(ev)
	}
}

func (state *CoordinatorActor) publish(ev any) {
	if state.eventStream != nil {
		state.eventStream.Publish(ev)
	}
}

func (state *CoordinatorActor) stopTicks() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *CoordinatorActor) snapshot() domain.GetReadingResponse {
	return domain.GetReadingResponse{
		Reading:     state.reading,
		State:       state.state,
		LastError:   state.lastError,
		LastSuccess: state.lastSuccess,
	}
}

func (state *CoordinatorActor) healthResponse() domain.ActorHealthResponse {
	return domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_COORDINATOR,
		Healthy: true,
		State:   string(state.state),
	}
}
