package domain

import (
	"time"

	"github.com/berfenger/obis2mqtt/pkg/obis"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_HTTP         = "http"
	ACTOR_ID_COORDINATOR  = "coordinator"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_INFLUX       = "influx"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// HTTP adapter

type FetchReadingRequest struct {
	ActorRequestMixIn
}

type FetchReadingResponse struct {
	ActorResponseMixIn
	Reading obis.Reading
}

// Coordinator

type RefreshRequest struct {
	ActorRequestMixIn
}

type RefreshResponse struct {
	ActorResponseMixIn
	State CoordinatorState
}

type GetReadingRequest struct {
	ActorRequestMixIn
}

// GetReadingResponse is a snapshot of the coordinator. Reading must not be
// modified by the receiver.
type GetReadingResponse struct {
	ActorResponseMixIn
	Reading     obis.Reading
	State       CoordinatorState
	LastError   error
	LastSuccess time.Time
}

// MQTT adapter

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
