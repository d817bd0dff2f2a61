// Package metrics holds the prometheus instrumentation shared by the volume
// packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"
	codeLabel   = "code"

	// LoadOK, LoadMissing and LoadFailed are the values of the load result
	// label.
	LoadOK      = "ok"
	LoadMissing = "no_scalar_grid"
	LoadFailed  = "error"
)

var (
	volumeLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparsevol_volume_loads_total",
		Help: "The number of volume loads by result.",
	}, []string{resultLabel})

	marches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparsevol_marches_total",
		Help: "The number of ray marches started on a loaded volume.",
	})

	marchSpans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparsevol_march_spans_total",
		Help: "The number of active spans visited by ray marches.",
	})

	marchSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparsevol_march_samples_total",
		Help: "The number of sample callbacks issued by ray marches.",
	})

	pointSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparsevol_point_samples_total",
		Help: "The number of point samples evaluated.",
	})

	apiErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparsevol_api_errors_total",
		Help: "The errors reported through the library error sink.",
	}, []string{codeLabel})
)

// VolumeLoads returns the load counter for one result label value.
func VolumeLoads(result string) prometheus.Counter {
	return volumeLoads.With(prometheus.Labels{resultLabel: result})
}

// APIErrors returns the error counter for one error code.
func APIErrors(code string) prometheus.Counter {
	return apiErrors.With(prometheus.Labels{codeLabel: code})
}

// Marches is the number of marches started.
func Marches() prometheus.Counter { return marches }

// MarchSpans is the number of spans visited.
func MarchSpans() prometheus.Counter { return marchSpans }

// MarchSamples is the number of sample callbacks issued.
func MarchSamples() prometheus.Counter { return marchSamples }

// PointSamples is the number of point samples.
func PointSamples() prometheus.Counter { return pointSamples }

// InstrumentLoad counts one volume load with the given result.
func InstrumentLoad(result string) {
	VolumeLoads(result).Inc()
}

// InstrumentMarch counts one march and the spans and samples it produced.
func InstrumentMarch(spans, samples int) {
	marches.Inc()
	marchSpans.Add(float64(spans))
	marchSamples.Add(float64(samples))
}

// InstrumentPointSample counts one point sample.
func InstrumentPointSample() {
	pointSamples.Inc()
}

// InstrumentAPIError counts one error reported with code.
func InstrumentAPIError(code string) {
	APIErrors(code).Inc()
}
