package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash holds messages an actor cannot handle in its current behavior.
// With a Limit, the oldest message is evicted once the stash is full.
type Stash struct {
	Limit int
	elems []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

// Stash keeps msg with its sender and reports whether an older message was
// evicted to make room for it.
func (stash *Stash) Stash(ctx actor.Context, msg any) (evicted bool) {
	if stash.Limit > 0 && len(stash.elems) >= stash.Limit {
		stash.elems = stash.elems[1:]
		evicted = true
	}
	stash.elems = append(stash.elems, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
	return evicted
}

func (stash *Stash) Len() int {
	return len(stash.elems)
}

// UnstashAll re-enqueues every stashed message, oldest first.
func (stash *Stash) UnstashAll(ctx actor.Context) {
	elems := stash.elems
	stash.elems = nil
	for _, elem := range elems {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.elems) == 0 {
		return
	}
	first := stash.elems[0]
	stash.elems = stash.elems[1:]
	ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
}
