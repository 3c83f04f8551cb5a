package metrics

import (
	"net/http"
	"time"

	"github.com/berfenger/obis2mqtt/internal/core/domain"
	"github.com/berfenger/obis2mqtt/internal/core/port"
	"github.com/berfenger/obis2mqtt/pkg/obis"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obis2mqtt"

type Metrics struct {
	registry      *prometheus.Registry
	polls         *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
	registers     *prometheus.GaugeVec
	// register_value label set, fixed to the catalog keys
	registerKeys  []string
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var keys []string
	for _, sensor := range domain.MeterSensors(domain.Device{}) {
		keys = append(keys, sensor.Key)
	}

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Completed polls of the OBIS endpoint by outcome.",
		}, []string{"outcome"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of OBIS endpoint requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll.",
		}),
		registers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "register_value",
			Help:      "Last numeric value of each OBIS register.",
		}, []string{"key"}),
		registerKeys: keys,
	}
}

func (m *Metrics) RecordPoll(state domain.CoordinatorState) {
	m.polls.WithLabelValues(string(state)).Inc()
}

// Instrument times every client call.
func (m *Metrics) Instrument() *obis.Instrument {
	return &obis.Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.fetchDuration.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}

func (m *Metrics) ObserveReading(reading obis.Reading, ts time.Time) {
	m.lastSuccess.Set(float64(ts.Unix()))
	for _, key := range m.registerKeys {
		if v, ok := reading.Float(key); ok {
			m.registers.WithLabelValues(key).Set(v)
		} else {
			m.registers.DeleteLabelValues(key)
		}
	}
}

// Subscribe feeds successful readings from the event stream into the gauges.
func (m *Metrics) Subscribe(es *eventstream.EventStream) *eventstream.Subscription {
	return es.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.ReadingUpdatedEvent); ok {
			m.ObserveReading(ev.Reading, ev.Time)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ensure interface compliance
var _ port.PollRecorder = (*Metrics)(nil)
