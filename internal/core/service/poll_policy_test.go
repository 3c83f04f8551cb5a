package service

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/pkg/obis"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var policy = &DefaultPollPolicy{
	Interval: 30 * time.Second,
	Logger:   zap.NewNop(),
}

func TestClassify(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(domain.COORDINATOR_STATE_READY, policy.Classify(nil))
	assert.Equal(domain.COORDINATOR_STATE_FAILED_AUTH, policy.Classify(&obis.AuthError{StatusCode: 401}))
	assert.Equal(domain.COORDINATOR_STATE_FAILED_TRANSIENT, policy.Classify(&obis.CommunicationError{Err: errors.New("timeout")}))
	assert.Equal(domain.COORDINATOR_STATE_FAILED_TRANSIENT, policy.Classify(&obis.ClientError{StatusCode: 500}))
	assert.Equal(domain.COORDINATOR_STATE_FAILED_TRANSIENT, policy.Classify(errors.New("boom")))
}

func TestNextPoll(t *testing.T) {

	assert := assert.New(t)

	d, ok := policy.NextPoll(domain.COORDINATOR_STATE_READY)
	assert.True(ok)
	assert.Equal(30*time.Second, d)

	d, ok = policy.NextPoll(domain.COORDINATOR_STATE_FAILED_TRANSIENT)
	assert.True(ok)
	assert.Equal(30*time.Second, d)

	_, ok = policy.NextPoll(domain.COORDINATOR_STATE_FAILED_AUTH)
	assert.False(ok)
}
