package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProduceRuns — исходы запусков производства (success / insufficient_stock / ...).
	ProduceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_produce_runs_total",
		Help: "Production runs by outcome.",
	}, []string{"status"})

	ProducedUnits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_produced_units_total",
		Help: "Units of output material credited by successful runs.",
	})
)
