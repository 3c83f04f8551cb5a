package port

import "github.com/berfenger/obis2mqtt/internal/core/domain"

type PollRecorder interface {
	RecordPoll(state domain.CoordinatorState)
}
