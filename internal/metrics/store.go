package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"talentflow/internal/fault"
)

var storeOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "talentflow",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "存储层写操作总数，按结果区分（ok / simulated / error）。",
	},
	[]string{"op", "result"},
)

// ObserveStoreOperation 记录一次存储层写操作的结果。
func ObserveStoreOperation(op string, err error) {
	storeOperationsTotal.WithLabelValues(op, storeResult(err)).Inc()
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fault.ErrSimulated):
		return "simulated"
	default:
		return "error"
	}
}
