package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("OBIS2MQTT")
	assert.NoError(err)
	assert.Equal("obis2mqtt", topic, "topic is lowercased")

	_, err = CheckMQTTTopic("obis/meter")
	assert.Error(err)

	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestRedacted(t *testing.T) {

	assert := assert.New(t)

	cfg := Config{
		MQTT:   MQTTConfig{Username: "user", Password: "secret"},
		Influx: InfluxConfig{Token: "token"},
	}
	r := cfg.Redacted()

	assert.Equal("*redacted*", r.MQTT.Username)
	assert.Equal("*redacted*", r.MQTT.Password)
	assert.Equal("*redacted*", r.Influx.Token)
	assert.Equal("secret", cfg.MQTT.Password, "original untouched")

	assert.Equal("", Config{}.Redacted().MQTT.Password, "empty values stay empty")
}
