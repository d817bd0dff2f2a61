package volume

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// entropyBins is the histogram resolution used for the entropy estimate.
const entropyBins = 256

// Stats summarises the active values of a volume.
type Stats struct {
	// ActiveVoxels is the number of active voxels.
	ActiveVoxels uint64 `json:"activeVoxels"`

	// Leaves is the number of allocated leaf nodes.
	Leaves int `json:"leaves"`

	// Min and Max are the cached value range.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// Mean and StdDev are the mean and sample standard deviation.
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`

	// Entropy is the Shannon entropy of the value histogram in bits.
	Entropy float64 `json:"entropy"`
}

// Stats computes a summary of the active values. Unlike Min and Max it is
// not cached and reads every active voxel.
func (v *Volume) Stats() Stats {
	s := Stats{
		ActiveVoxels: v.store.ActiveVoxelCount(),
		Leaves:       v.store.LeafCount(),
		Min:          v.min,
		Max:          v.max,
	}
	values := v.store.ActiveValues()
	if len(values) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	s.Entropy = entropy(values)
	return s
}

// entropy bins values into a fixed histogram spanning their range and
// returns its Shannon entropy in bits.
func entropy(values []float64) float64 {
	lo, hi := floats.Min(values), floats.Max(values)
	if !(hi > lo) {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	dividers := make([]float64, entropyBins+1)
	floats.Span(dividers, lo, hi)
	dividers[entropyBins] = math.Nextafter(hi, math.Inf(1))

	hist := stat.Histogram(nil, dividers, sorted, nil)
	floats.Scale(1/float64(len(sorted)), hist)
	return stat.Entropy(hist) / math.Ln2
}
