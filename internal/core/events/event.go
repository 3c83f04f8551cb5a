package events

import (
	. "github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/pkg/obis"
)

// ReadingToUpdateEvents projects a reading onto the meter entities. Keys
// absent from the reading produce no event.
func ReadingToUpdateEvents(reading obis.Reading, meterDevice Device) []any {
	var events []any

	for _, sensor := range MeterSensors(meterDevice) {
		value, ok := reading.Text(sensor.Key)
		if !ok {
			continue
		}
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: sensor.Id,
			},
			Value: value,
		})
	}

	for _, sensor := range MeterBinarySensors(meterDevice) {
		value, ok := PowerFlowing(reading, sensor.Key)
		if !ok {
			continue
		}
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: sensor.Id,
			},
			Value: value,
		})
	}

	return events
}

// PowerFlowing reports whether the power register key is strictly positive.
// A missing register reads as 0. A value that is not numeric is unknown.
func PowerFlowing(reading obis.Reading, key string) (value bool, known bool) {
	power, ok := reading.FloatOrDefault(key, 0)
	if !ok {
		return false, false
	}
	return power > 0, true
}

func IsImporting(reading obis.Reading) (bool, bool) {
	return PowerFlowing(reading, OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_IMPORT)
}

func IsExporting(reading obis.Reading) (bool, bool) {
	return PowerFlowing(reading, OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_EXPORT)
}

func CoordinatorStateUpdateEvents(state CoordinatorState) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_COORDINATOR_STATE,
		},
		Value: string(state),
	})

	// polling keeps the previous outcome
	if state != COORDINATOR_STATE_POLLING && state != COORDINATOR_STATE_IDLE {
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_LAST_UPDATE_SUCCESS,
			},
			Value: state == COORDINATOR_STATE_READY,
		})
	}

	return events
}

func BridgeOnlineUpdateEvent(online bool) any {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
