package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImportRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "import_rows_total",
		Help:      "Rows processed by file imports, by category and outcome.",
	}, []string{"category", "outcome"})

	ImportBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "import_batches_total",
		Help:      "Import batches, by category and status.",
	}, []string{"category", "status"})

	Reminders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club",
		Name:      "debt_reminders_total",
		Help:      "Debt reminder emails, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(ImportRows, ImportBatches, Reminders)
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
