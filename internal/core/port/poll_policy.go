package port

import (
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
)

type PollPolicy interface {
	// Classify maps the outcome of a fetch to the coordinator state.
	Classify(err error) domain.CoordinatorState
	// NextPoll returns the delay until the next scheduled poll. ok is false
	// when scheduled polling must stop.
	NextPoll(state domain.CoordinatorState) (delay time.Duration, ok bool)
}
