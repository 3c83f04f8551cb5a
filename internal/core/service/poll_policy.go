package service

import (
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	"github.com/berfenger/obis2mqtt/pkg/obis"
	"go.uber.org/zap"
)

type DefaultPollPolicy struct {
	Interval time.Duration
	Logger   *zap.Logger
}

func (p *DefaultPollPolicy) Classify(err error) domain.CoordinatorState {
	if err == nil {
		return domain.COORDINATOR_STATE_READY
	}
	if obis.IsAuthError(err) {
		p.Logger.Error("coordinator@polling: endpoint rejected credentials. Scheduled polling stops until a manual refresh.", zap.Error(err))
		return domain.COORDINATOR_STATE_FAILED_AUTH
	}
	p.Logger.Warn("coordinator@polling: poll failed. Keeping last reading.", zap.Error(err))
	return domain.COORDINATOR_STATE_FAILED_TRANSIENT
}

func (p *DefaultPollPolicy) NextPoll(state domain.CoordinatorState) (time.Duration, bool) {
	if state == domain.COORDINATOR_STATE_FAILED_AUTH {
		return 0, false
	}
	return p.Interval, true
}

// ensure interface compliance
var _ port.PollPolicy = (*DefaultPollPolicy)(nil)
