package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatNodes"
	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

type metrics struct {
	catalogFetches *prometheus.CounterVec
	devices        *prometheus.GaugeVec
	warnings       *prometheus.CounterVec
	actions        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		catalogFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubitat_catalog_fetch_total",
				Help: "Device catalog fetches by result.",
			},
			[]string{"result"}),
		devices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubitat_devices",
				Help: "Devices in the last normalized catalog by translation kind.",
			},
			[]string{"kind"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubitat_normalization_warnings_total",
				Help: "Soft failures absorbed while normalizing devices.",
			},
			[]string{"kind"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubitat_actions_total",
				Help: "Device actions sent to the hub by channel and result.",
			},
			[]string{"channel", "result"},
		),
	}
	reg.MustRegister(m.catalogFetches)
	reg.MustRegister(m.devices)
	reg.MustRegister(m.warnings)
	reg.MustRegister(m.actions)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *metrics) observeFetch(err error) {
	m.catalogFetches.WithLabelValues(result(err)).Inc()
}

func (m *metrics) observeCatalog(devices map[string]hubitatStructs.NormalizedDevice) {
	counts := map[hubitatStructs.Kind]float64{
		hubitatStructs.KindAudio:   0,
		hubitatStructs.KindMusic:   0,
		hubitatStructs.KindWeather: 0,
		hubitatStructs.KindGeneric: 0,
	}
	for _, d := range devices {
		counts[d.Class]++
		for _, w := range d.Warnings {
			m.warnings.WithLabelValues(string(w.Kind)).Inc()
		}
	}
	for kind, n := range counts {
		m.devices.WithLabelValues(string(kind)).Set(n)
	}
}

// instrumentedSender counts the actions passing through to the hub.
type instrumentedSender struct {
	next    hubitatNodes.ActionSender
	metrics *metrics
}

func (s instrumentedSender) SendAction(ctx context.Context, device hubitatStructs.NormalizedDevice, channel string, value string) (hubitatStructs.Ack, error) {
	ack, err := s.next.SendAction(ctx, device, channel, value)
	s.metrics.actions.WithLabelValues(channel, result(err)).Inc()
	return ack, err
}
