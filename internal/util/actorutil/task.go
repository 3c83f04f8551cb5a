package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var errNilResult = errors.New("background task returned no result")

// BackgroundTask runs a blocking call off the actor goroutine and pipes its
// value back as a message. Failures, timeouts included, go through the
// Recover function; without one they are dropped.
type BackgroundTask[T any] struct {
	system  *actor.ActorSystem
	fn      func() (*T, error)
	timeout time.Duration
	recover func(error) T
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *BackgroundTask[T] {
	return &BackgroundTask[T]{system: ctx.ActorSystem(), fn: fn}
}

func NewBackgroundTaskNoError[T any](ctx actor.Context, fn func() *T) *BackgroundTask[T] {
	return NewBackgroundTask(ctx, func() (*T, error) {
		return fn(), nil
	})
}

// MapBackgroundTask transforms the successful result of bgt.
func MapBackgroundTask[T, T2 any](bgt *BackgroundTask[T], mapFn func(*T) *T2) *BackgroundTask[T2] {
	return &BackgroundTask[T2]{
		system: bgt.system,
		fn: func() (*T2, error) {
			r, err := bgt.fn()
			if err != nil {
				return nil, err
			}
			return mapFn(r), nil
		},
	}
}

func (t *BackgroundTask[T]) WithTimeout(timeout time.Duration) *BackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *BackgroundTask[T]) Recover(fn func(error) T) *BackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeTo starts the task and sends its outcome to pid.
func (t *BackgroundTask[T]) PipeTo(pid *actor.PID) {
	go func() {
		if value, ok := t.await(); ok {
			t.system.Root.Send(pid, value)
		}
	}()
}

func (t *BackgroundTask[T]) await() (T, bool) {
	task := io.Eval(func() (T, error) {
		var zero T
		v, err := t.fn()
		if err != nil {
			return zero, err
		}
		if v == nil {
			return zero, errNilResult
		}
		return *v, nil
	})
	if t.timeout > 0 {
		task = io.WithTimeout[T](t.timeout)(task)
	}

	result := io.RunSync(task)
	if result.Error == nil {
		return result.Value, true
	}
	if t.recover == nil {
		var zero T
		return zero, false
	}
	return t.recover(result.Error), true
}
