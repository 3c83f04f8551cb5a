package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	OBIS_KEY_TOTAL_ACTIVE_ENERGY_IMPORT        = "1.8.0"
	OBIS_KEY_TOTAL_ACTIVE_ENERGY_EXPORT        = "2.8.0"
	OBIS_KEY_TOTAL_POSITIVE_REACTIVE_ENERGY    = "3.8.0"
	OBIS_KEY_TOTAL_NEGATIVE_REACTIVE_ENERGY    = "4.8.0"
	OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_IMPORT = "1.7.0"
	OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_EXPORT = "2.7.0"
	OBIS_KEY_INSTANTANEOUS_TOTAL_ACTIVE_POWER  = "16.7.0"
	OBIS_KEY_TIMESTAMP                         = "timestamp"
	OBIS_KEY_UPTIME                            = "uptime"
	OBIS_KEY_UTC                               = "UTC"
	SENSOR_ID_BRIDGE_STATE                     = "bridge"
	SENSOR_ID_COORDINATOR_STATE                = "coordinator_state"
	SENSOR_ID_LAST_UPDATE_SUCCESS              = "last_update_success"
	SENSOR_ID_ACTIVE_ENERGY_IMPORT             = "active_energy_import"
	SENSOR_ID_ACTIVE_ENERGY_EXPORT             = "active_energy_export"
	SENSOR_ID_REACTIVE_ENERGY_IMPORT           = "reactive_energy_import"
	SENSOR_ID_REACTIVE_ENERGY_EXPORT           = "reactive_energy_export"
	SENSOR_ID_ACTIVE_POWER_IMPORT              = "active_power_import"
	SENSOR_ID_ACTIVE_POWER_EXPORT              = "active_power_export"
	SENSOR_ID_TOTAL_ACTIVE_POWER               = "total_active_power"
	SENSOR_ID_TIMESTAMP                        = "timestamp"
	SENSOR_ID_UPTIME                           = "uptime"
	SENSOR_ID_UTC                              = "utc"
	BINARY_SENSOR_ID_IMPORTING                 = "importing"
	BINARY_SENSOR_ID_EXPORTING                 = "exporting"
	BUTTON_ID_REFRESH                          = "refresh"
	STATE_CLASS_MEASUREMENT                    = "measurement"
	STATE_CLASS_TOTAL_INCREASING               = "total_increasing"
	DEVICE_CLASS_ENERGY                        = "energy"
	DEVICE_CLASS_POWER                         = "power"
	DEVICE_CLASS_CONNECTIVITY                  = "connectivity"
	DEVICE_CLASS_PROBLEM                       = "problem"
	ENTITY_CLASS_DIAGNOSTIC                    = "diagnostic"
	ENTITY_CLASS_CONFIG                        = "config"
	SENSOR_TYPE_SENSOR                         = "sensor"
	SENSOR_TYPE_BINARY                         = "binary_sensor"
	DEFAULT_METER_NAME                         = "OBIS Energy Reader"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("obis2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "obis2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("obis2mqtt %s", md5HashShort(baseTopic)),
	}
}

// MeterDevice identifies the endpoint by its URL, the payload carries no serial.
func MeterDevice(url, name string) Device {
	if name == "" {
		name = DEFAULT_METER_NAME
	}
	return Device{
		Id:           fmt.Sprintf("obis_meter_%s", md5HashShort(url)),
		Manufacturer: "OBIS",
		Model:        "OBIS JSON Endpoint",
		Name:         name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// MeterSensors is the sensor catalog of the endpoint, one entry per known key.
func MeterSensors(meterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// 1.8.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_ACTIVE_ENERGY_IMPORT,
		Key:               OBIS_KEY_TOTAL_ACTIVE_ENERGY_IMPORT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total active energy consumed (import)",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_ACTIVE_ENERGY_IMPORT),
	})

	// 2.8.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_ACTIVE_ENERGY_EXPORT,
		Key:               OBIS_KEY_TOTAL_ACTIVE_ENERGY_EXPORT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total active energy exported (export)",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_ACTIVE_ENERGY_EXPORT),
	})

	// 3.8.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_REACTIVE_ENERGY_IMPORT,
		Key:               OBIS_KEY_TOTAL_POSITIVE_REACTIVE_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total positive reactive energy imported",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		UnitOfMeasurement: "kvarh",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_REACTIVE_ENERGY_IMPORT),
	})

	// 4.8.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_REACTIVE_ENERGY_EXPORT,
		Key:               OBIS_KEY_TOTAL_NEGATIVE_REACTIVE_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total negative reactive energy exported",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		UnitOfMeasurement: "kvarh",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_REACTIVE_ENERGY_EXPORT),
	})

	// 1.7.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_ACTIVE_POWER_IMPORT,
		Key:               OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_IMPORT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Instantaneous active power (import)",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_ACTIVE_POWER_IMPORT),
	})

	// 2.7.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_ACTIVE_POWER_EXPORT,
		Key:               OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_EXPORT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Instantaneous active power (export)",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_ACTIVE_POWER_EXPORT),
	})

	// 16.7.0
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_TOTAL_ACTIVE_POWER,
		Key:               OBIS_KEY_INSTANTANEOUS_TOTAL_ACTIVE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Instantaneous total active power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_TOTAL_ACTIVE_POWER),
	})

	// Timestamp
	sensors = append(sensors, GenericSensor{
		Device:     meterDevice,
		Id:         SENSOR_ID_TIMESTAMP,
		Key:        OBIS_KEY_TIMESTAMP,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Timestamp of the reading",
		UniqueId:   uniqueId(meterDevice.Id, SENSOR_ID_TIMESTAMP),
	})

	// Uptime
	sensors = append(sensors, GenericSensor{
		Device:     meterDevice,
		Id:         SENSOR_ID_UPTIME,
		Key:        OBIS_KEY_UPTIME,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Uptime of the device",
		UniqueId:   uniqueId(meterDevice.Id, SENSOR_ID_UPTIME),
	})

	// UTC
	sensors = append(sensors, GenericSensor{
		Device:     meterDevice,
		Id:         SENSOR_ID_UTC,
		Key:        OBIS_KEY_UTC,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Timestamp in UTC",
		UniqueId:   uniqueId(meterDevice.Id, SENSOR_ID_UTC),
	})

	return sensors
}

// MeterBinarySensors are on when the power register named by Key is > 0.
func MeterBinarySensors(meterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Importing
	sensors = append(sensors, GenericSensor{
		Device:     meterDevice,
		Id:         BINARY_SENSOR_ID_IMPORTING,
		Key:        OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_IMPORT,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Importing Power",
		Icon:       "mdi:transmission-tower",
		UniqueId:   uniqueId(meterDevice.Id, BINARY_SENSOR_ID_IMPORTING),
	})

	// Exporting
	sensors = append(sensors, GenericSensor{
		Device:     meterDevice,
		Id:         BINARY_SENSOR_ID_EXPORTING,
		Key:        OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_EXPORT,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Exporting Power",
		Icon:       "mdi:solar-power",
		UniqueId:   uniqueId(meterDevice.Id, BINARY_SENSOR_ID_EXPORTING),
	})

	return sensors
}

func CoordinatorSensors(meterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Coordinator state
	sensors = append(sensors, GenericSensor{
		Device:         meterDevice,
		Id:             SENSOR_ID_COORDINATOR_STATE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Coordinator state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:state-machine",
		UniqueId:       uniqueId(meterDevice.Id, SENSOR_ID_COORDINATOR_STATE),
	})

	// Last update success
	sensors = append(sensors, GenericSensor{
		Device:         meterDevice,
		Id:             SENSOR_ID_LAST_UPDATE_SUCCESS,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Last update success",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(meterDevice.Id, SENSOR_ID_LAST_UPDATE_SUCCESS),
	})

	return sensors
}

func MeterButtons(meterDevice Device) []GenericButton {

	var buttons []GenericButton

	// Manual refresh
	buttons = append(buttons, GenericButton{
		Device:         meterDevice,
		Id:             BUTTON_ID_REFRESH,
		Name:           "Refresh",
		Icon:           "mdi:refresh",
		EntityCategory: ENTITY_CLASS_CONFIG,
		UniqueId:       uniqueId(meterDevice.Id, BUTTON_ID_REFRESH),
	})

	return buttons
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
