package influx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingPoint(t *testing.T) {

	require := require.New(t)
	assert := assert.New(t)

	ts := time.Unix(1714550400, 0)
	p, err := ReadingPoint("obis_meter_abcd", obis.Reading{
		"1.8.0":     json.Number("12345.678"),
		"1.7.0":     "1250",
		"timestamp": "2024-05-01T10:00:00",
	}, ts)
	require.NoError(err)

	assert.Equal(MEASUREMENT, p.Name())
	assert.Equal(ts, p.Time())
	require.Len(p.TagList(), 1)
	assert.Equal(TAG_DEVICE_ID, p.TagList()[0].Key)
	assert.Equal("obis_meter_abcd", p.TagList()[0].Value)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(map[string]interface{}{"1.7.0": 1250.0, "1.8.0": 12345.678}, fields)
}

func TestReadingPointNoNumeric(t *testing.T) {

	_, err := ReadingPoint("dev", obis.Reading{"uptime": "0000:01:02:03"}, time.Now())
	assert.ErrorIs(t, err, ErrNoNumericFields)
}
