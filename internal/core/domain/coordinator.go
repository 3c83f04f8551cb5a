package domain

type CoordinatorState string

const (
	COORDINATOR_STATE_IDLE             CoordinatorState = "idle"
	COORDINATOR_STATE_POLLING          CoordinatorState = "polling"
	COORDINATOR_STATE_READY            CoordinatorState = "ready"
	COORDINATOR_STATE_FAILED_AUTH      CoordinatorState = "failed_auth"
	COORDINATOR_STATE_FAILED_TRANSIENT CoordinatorState = "failed_transient"
)

func (s CoordinatorState) Failed() bool {
	return s == COORDINATOR_STATE_FAILED_AUTH || s == COORDINATOR_STATE_FAILED_TRANSIENT
}
