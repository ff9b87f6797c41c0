package distance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SurfaceMetrics aggregates nearest-neighbor distances between two point
// sets. These are the directed measurements common in segmentation
// evaluation; they answer a different question than Extremes. Hausdorff is
// the largest nearest-neighbor distance and is bounded above by
// Result.Max, which ranges over all pairs rather than nearest ones.
type SurfaceMetrics struct {
	// MeanAToB is the mean distance from each point of a to its nearest
	// point of b; MeanBToA is the reverse direction.
	MeanAToB float64
	MeanBToA float64

	// ASSD is the average symmetric surface distance: the mean over the
	// pooled nearest-neighbor distances of both directions.
	ASSD float64

	// HausdorffAToB and HausdorffBToA are the directed Hausdorff
	// distances; Hausdorff is the larger of the two.
	HausdorffAToB float64
	HausdorffBToA float64
	Hausdorff     float64

	// Hausdorff95 is the 95th percentile symmetric Hausdorff distance,
	// the usual outlier-tolerant variant.
	Hausdorff95 float64
}

// SurfaceMetrics computes nearest-neighbor aggregate distances between a
// and b. Both sets must be non-empty and share one dimensionality.
func (e *Engine) SurfaceMetrics(a, b *Set) (SurfaceMetrics, error) {
	if err := validatePair(a, b); err != nil {
		return SurfaceMetrics{}, err
	}

	ab := distancesFromSquared(e.nearestSquared(a, b))
	ba := distancesFromSquared(e.nearestSquared(b, a))

	var sumAB, sumBA float64
	for _, d := range ab {
		sumAB += d
	}
	for _, d := range ba {
		sumBA += d
	}

	sort.Float64s(ab)
	sort.Float64s(ba)

	m := SurfaceMetrics{
		MeanAToB:      stat.Mean(ab, nil),
		MeanBToA:      stat.Mean(ba, nil),
		ASSD:          (sumAB + sumBA) / float64(len(ab)+len(ba)),
		HausdorffAToB: ab[len(ab)-1],
		HausdorffBToA: ba[len(ba)-1],
	}
	m.Hausdorff = math.Max(m.HausdorffAToB, m.HausdorffBToA)
	m.Hausdorff95 = math.Max(
		stat.Quantile(0.95, stat.Empirical, ab, nil),
		stat.Quantile(0.95, stat.Empirical, ba, nil),
	)
	return m, nil
}

// distancesFromSquared converts squared distances to distances in place.
func distancesFromSquared(dsq []float64) []float64 {
	for i, d := range dsq {
		dsq[i] = math.Sqrt(d)
	}
	return dsq
}
