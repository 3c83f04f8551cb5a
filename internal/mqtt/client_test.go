package mqtt

import (
	"testing"

	"github.com/berfenger/obis2mqtt/internal/config"
	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "obis2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/refresh/press"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "refresh", "button extract")
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	for _, topic := range []string{
		"loremTopic/sensor/refresh/state",
		"loremTopic/button/refresh/state",
		"otherTopic/button/refresh/press",
		"prefix/loremTopic/button/refresh/press",
	} {
		r := buttonCommandExtractor(baseTopic)
		matches := r.FindAllStringSubmatch(topic, 1)
		assert.Equal(len(matches), 0, topic)
	}
}

func TestParseMQTTCommand(t *testing.T) {

	require := require.New(t)
	c := testClient()

	cmd, err := c.ParseMQTTCommand("obis2mqtt/button/refresh/press", []byte(MQTT_PAYLOAD_PRESS))
	require.NoError(err)
	require.Equal(domain.BUTTON_ID_REFRESH, cmd.DeviceId)
	require.Equal(MQTT_COMMAND_BUTTON, cmd.Command)

	_, err = c.ParseMQTTCommand("obis2mqtt/sensor/uptime/state", []byte("1"))
	require.Error(err)
}

func TestDiscoveryMessages(t *testing.T) {

	assert := assert.New(t)
	c := testClient()

	meter := domain.MeterDevice("http://10.0.0.2/json", "")
	bridge := domain.BridgeDevice("obis2mqtt")

	bridgeSensor := domain.BridgeSensors(bridge)[0]
	msg := GenericSensorToHADiscoveryMessage(c, bridgeSensor)
	assert.Equal("obis2mqtt/bridge/state", msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Empty(msg.AvTopic)

	importing := domain.MeterBinarySensors(meter)[0]
	msg = GenericSensorToHADiscoveryMessage(c, importing)
	assert.Equal("obis2mqtt/binary_sensor/importing/state", msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
	assert.Equal("obis2mqtt/bridge/state", msg.AvTopic)
	assert.Equal("homeassistant/binary_sensor/"+meter.Id+"/importing/config", c.HADiscoverySensorTopic(importing))

	energy := domain.MeterSensors(meter)[0]
	msg = GenericSensorToHADiscoveryMessage(c, energy)
	assert.Equal("obis2mqtt/sensor/active_energy_import/state", msg.StateTopic)
	assert.Equal("kWh", msg.UnitOfMeasurement)
	assert.Empty(msg.PayloadOn)

	button := domain.MeterButtons(meter)[0]
	msg = GenericButtonToHADiscoveryMessage(c, button)
	assert.Equal("obis2mqtt/button/refresh/press", msg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, msg.PayloadPress)
	assert.Empty(msg.StateTopic)
	assert.Equal("homeassistant/button/"+meter.Id+"/refresh/config", c.HADiscoveryButtonTopic(button))
}
