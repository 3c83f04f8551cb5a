package domain

import (
	"fmt"
	"time"

	"github.com/berfenger/obis2mqtt/pkg/obis"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// ReadingUpdatedEvent is published once per successful poll, before the
// per-sensor events derived from it.
type ReadingUpdatedEvent struct {
	Reading obis.Reading
	Time    time.Time
}

type CoordinatorStateChangedEvent struct {
	State CoordinatorState
	Error error
}
