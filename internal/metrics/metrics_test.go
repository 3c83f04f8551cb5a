package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPoll(t *testing.T) {

	assert := assert.New(t)
	m := New()

	m.RecordPoll(domain.COORDINATOR_STATE_READY)
	m.RecordPoll(domain.COORDINATOR_STATE_READY)
	m.RecordPoll(domain.COORDINATOR_STATE_FAILED_AUTH)

	assert.Equal(2.0, testutil.ToFloat64(m.polls.WithLabelValues("ready")))
	assert.Equal(1.0, testutil.ToFloat64(m.polls.WithLabelValues("failed_auth")))
}

func TestObserveReadingFromEventStream(t *testing.T) {

	assert := assert.New(t)
	m := New()
	es := &eventstream.EventStream{}
	m.Subscribe(es)

	ts := time.Unix(1714550400, 0)
	es.Publish(domain.ReadingUpdatedEvent{
		Reading: obis.Reading{"1.8.0": json.Number("10.5"), "uptime": "0000:01:02:03"},
		Time:    ts,
	})

	assert.Equal(10.5, testutil.ToFloat64(m.registers.WithLabelValues("1.8.0")))
	assert.Equal(float64(ts.Unix()), testutil.ToFloat64(m.lastSuccess))
	assert.Equal(1, testutil.CollectAndCount(m.registers))
}

func TestObserveReadingOnlyExportsCatalogKeys(t *testing.T) {

	assert := assert.New(t)
	m := New()

	m.ObserveReading(obis.Reading{
		"1.8.0":  json.Number("10.5"),
		"2.8.0":  json.Number("3"),
		"99.9.9": json.Number("1"),
		"C.1.0":  json.Number("123456"),
	}, time.Now())
	assert.Equal(2, testutil.CollectAndCount(m.registers), "keys outside the catalog are not exported")

	m.ObserveReading(obis.Reading{"1.8.0": json.Number("11")}, time.Now())
	assert.Equal(1, testutil.CollectAndCount(m.registers), "missing register is cleared")
	assert.Equal(11.0, testutil.ToFloat64(m.registers.WithLabelValues("1.8.0")))
}

func TestHandler(t *testing.T) {

	m := New()
	m.Instrument().RecordTime("Fetch", 120*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `obis2mqtt_fetch_duration_seconds_count{operation="Fetch"} 1`)
}
