package containers

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reinitDuration tracks the full rebuild including the rendezvous
	reinitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dgadapt_reinitialize_duration_seconds",
		Help:    "Container reinitialization duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"mode"})

	// containerSize reports the size of each container after the last rebuild
	containerSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dgadapt_container_size",
		Help: "Number of entries per container kind and partition",
	}, []string{"kind", "rank"})

	// invariantViolations counts failed reinitializations by reason
	invariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dgadapt_invariant_violations_total",
		Help: "Reinitializations aborted by a broken topology or consistency invariant",
	}, []string{"reason"})
)

func recordSizes(rank int, counts Counts) {
	r := strconv.Itoa(rank)
	containerSize.WithLabelValues("elements", r).Set(float64(counts.Elements))
	containerSize.WithLabelValues("interfaces", r).Set(float64(counts.Interfaces))
	containerSize.WithLabelValues("boundaries", r).Set(float64(counts.Boundaries))
	containerSize.WithLabelValues("mortars", r).Set(float64(counts.Mortars))
	containerSize.WithLabelValues("distributed_interfaces", r).Set(float64(counts.DistributedInterfaces))
	containerSize.WithLabelValues("distributed_mortars", r).Set(float64(counts.DistributedMortars))
}
