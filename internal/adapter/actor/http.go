package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/util/actorutil"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HTTPActor owns the OBIS endpoint client. At most one fetch is in flight,
// requests received meanwhile are stashed.
type HTTPActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   obis.Client
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewHTTPActor(client obis.Client, timeout time.Duration, logger *zap.Logger) *HTTPActor {
	if timeout <= 0 {
		timeout = obis.DefaultTimeout
	}
	act := &HTTPActor{
		client:   client,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{Limit: 16},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_HTTP, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *HTTPActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HTTPActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("http@default started")
	case domain.ActorHealthRequest:
		state.logger.Debug("http@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HTTP,
			Healthy: true,
			State:   "idle",
		})
	case domain.FetchReadingRequest:
		state.logger.Debug("http@default: FetchReadingRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		// the client enforces its own timeout, the task timeout is a backstop
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.fetchReading),
			mapTaskResult[domain.FetchReadingResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.FetchReadingResponse{
					ActorResponseMixIn: domain.ErrorResponse(&obis.CommunicationError{Err: err}),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout + 1*time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHTTP)
	default:
		state.logger.Debug("http@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HTTPActor) WaitingHTTP(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("http@WaitingHTTP backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HTTP,
			Healthy: true,
			State:   "fetching",
		})
	default:
		state.logger.Debug("http@WaitingHTTP stash", zap.String("type", fmt.Sprintf("%T", msg)))
		if state.stash.Stash(ctx, msg) {
			state.logger.Warn("http@WaitingHTTP stash full, oldest request dropped")
		}
	}
}

// fetchReading never returns an error, failures travel inside the response.
func (state *HTTPActor) fetchReading() (*domain.FetchReadingResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()
	reading, err := state.client.Fetch(ctx)
	if err != nil {
		state.logger.Warn("http@fetch error", zap.Error(err))
		return &domain.FetchReadingResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}, nil
	}
	return &domain.FetchReadingResponse{
		Reading: reading,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
