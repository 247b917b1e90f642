package catalog

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

type StoreMetrics struct {
	Saves          *prometheus.CounterVec
	LoadRecoveries prometheus.Counter
	Items          prometheus.Gauge
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_saves_total",
				Help: "Catalog snapshot writes by result",
			},
			[]string{"result"},
		),
		LoadRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_load_recoveries_total",
			Help: "Loads that fell back to an empty catalog",
		}),
		Items: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Items currently held across all categories",
		}),
	}

	reg.MustRegister(m.Saves, m.LoadRecoveries, m.Items)
	return m
}

func (m *StoreMetrics) saved(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Saves.WithLabelValues(resultError).Inc()
		return
	}
	m.Saves.WithLabelValues(resultOK).Inc()
}

func (m *StoreMetrics) recovered() {
	if m == nil {
		return
	}
	m.LoadRecoveries.Inc()
}

func (m *StoreMetrics) setItems(n int) {
	if m == nil {
		return
	}
	m.Items.Set(float64(n))
}
