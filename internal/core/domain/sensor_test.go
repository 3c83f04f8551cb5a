package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeterDevice(t *testing.T) {

	assert := assert.New(t)

	a := MeterDevice("http://10.0.0.2/json", "")
	b := MeterDevice("http://10.0.0.3/json", "Basement")

	assert.NotEqual(a.Id, b.Id)
	assert.Equal(DEFAULT_METER_NAME, a.Name)
	assert.Equal("Basement", b.Name)
	assert.Equal(a.Id, MeterDevice("http://10.0.0.2/json", "other").Id)
}

func TestSensorCatalog(t *testing.T) {

	assert := assert.New(t)
	device := MeterDevice("http://10.0.0.2/json", "")

	ids := map[string]bool{}
	for _, s := range append(MeterSensors(device), MeterBinarySensors(device)...) {
		assert.False(ids[s.UniqueId], s.UniqueId)
		ids[s.UniqueId] = true
		assert.Regexp("^[a-z0-9_]+$", s.Id)
	}
	assert.Len(MeterSensors(device), 10)

	for _, s := range MeterSensors(device) {
		switch s.Key {
		case OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_IMPORT, OBIS_KEY_INSTANTANEOUS_ACTIVE_POWER_EXPORT, OBIS_KEY_INSTANTANEOUS_TOTAL_ACTIVE_POWER:
			assert.Equal(DEVICE_CLASS_POWER, s.DeviceClass)
			assert.Equal("W", s.UnitOfMeasurement)
		case OBIS_KEY_TOTAL_ACTIVE_ENERGY_IMPORT, OBIS_KEY_TOTAL_ACTIVE_ENERGY_EXPORT:
			assert.Equal(DEVICE_CLASS_ENERGY, s.DeviceClass)
			assert.Equal(STATE_CLASS_TOTAL_INCREASING, s.StateClass)
		}
	}
}
