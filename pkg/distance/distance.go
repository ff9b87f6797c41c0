// Package distance computes Euclidean distance extremes between two finite
// point sets in physical space.
//
// The central operation is Extremes: the true global minimum and maximum
// distance over the full cross product of pairs, one point from each set.
// This is deliberately not the one-sided Hausdorff distance, which
// aggregates per-point nearest-neighbor distances instead of ranging over
// all pairs; that family of measurements lives in SurfaceMetrics and is
// documented there.
//
// All computation is double precision and exact: minima and maxima are
// plain numeric reductions with no tolerance applied, and every code path
// (sequential, parallel, tree-assisted) returns identical values.
package distance

import (
	"fmt"

	"voxeldist/pkg/geometry"
)

// EmptyPointSetError reports a distance computation over an empty point
// set. There is no meaningful distance extreme over an empty set; callers
// re-check their extraction step and retry with corrected input.
type EmptyPointSetError struct {
	Which string
}

// Error implements the error interface
func (e *EmptyPointSetError) Error() string {
	return fmt.Sprintf("point set %s is empty", e.Which)
}

// NewEmptyPointSetError creates a new EmptyPointSetError
func NewEmptyPointSetError(which string) error {
	return &EmptyPointSetError{Which: which}
}

// DimensionMismatchError reports points of inconsistent dimensionality,
// either inside one set or across the two sets of a computation.
type DimensionMismatchError struct {
	Want int
	Got  int
}

// Error implements the error interface
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d-dimensional points, got %d-dimensional", e.Want, e.Got)
}

// NewDimensionMismatchError creates a new DimensionMismatchError
func NewDimensionMismatchError(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}

// Set is an ordered, finite collection of points sharing one
// dimensionality, stored flat for locality. Order carries no meaning for
// the distance computation, which is permutation invariant; it only
// anchors the point indices reported in a Result.
type Set struct {
	data []float64
	n    int
	dims int
}

// NewSet builds a Set from point rows. All rows must have the same length;
// ragged input is rejected with a *DimensionMismatchError. An empty input
// builds a legal empty set, rejected later by the engine.
func NewSet(points [][]float64) (*Set, error) {
	if len(points) == 0 {
		return &Set{}, nil
	}

	dims := len(points[0])
	data := make([]float64, 0, len(points)*dims)
	for _, p := range points {
		if len(p) != dims {
			return nil, NewDimensionMismatchError(dims, len(p))
		}
		data = append(data, p...)
	}
	return &Set{data: data, n: len(points), dims: dims}, nil
}

// FromPoints builds a 3-dimensional Set from world-space points produced by
// the geometry layer.
func FromPoints(points []geometry.Point) *Set {
	data := make([]float64, 0, len(points)*3)
	for _, p := range points {
		data = append(data, p[0], p[1], p[2])
	}
	return &Set{data: data, n: len(points), dims: 3}
}

// Len returns the number of points in the set.
func (s *Set) Len() int { return s.n }

// Dims returns the dimensionality of the points, 0 for an empty set.
func (s *Set) Dims() int { return s.dims }

// At returns point i as a view into the set's storage. The returned slice
// must not be modified.
func (s *Set) At(i int) []float64 {
	return s.data[i*s.dims : (i+1)*s.dims]
}

// Result holds the distance extremes between two point sets, plus the
// indices of one achieving pair for each extreme. Only Min and Max are
// contractually fixed; when several pairs tie at an extreme, the first
// pair in scan order is reported, and callers must not rely on which pair
// that is.
type Result struct {
	// Min is the smallest Euclidean distance over all cross pairs.
	Min float64

	// Max is the largest Euclidean distance over all cross pairs.
	Max float64

	// MinA and MinB index one pair achieving Min in the two input sets.
	MinA, MinB int

	// MaxA and MaxB index one pair achieving Max.
	MaxA, MaxB int
}
