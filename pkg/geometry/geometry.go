// Package geometry implements the affine mapping between image index space
// and physical (world) space for volumetric medical images. Every image
// carries an origin, a per-axis spacing and a direction cosines matrix; a
// voxel index only becomes a physical position once all three are applied.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// OrthonormalTolerance is the numeric tolerance used when checking that a
// direction cosines matrix is orthonormal.
const OrthonormalTolerance = 1e-6

// Index is a position in image index space. Integer components address exact
// voxel centers; fractional components are legal and address points between
// them.
type Index [3]float64

// Point is a position in physical space, in the units of the image spacing
// (millimeters for medical images).
type Point [3]float64

// InvalidGeometryError reports image geometry that cannot describe a valid
// physical mapping: non-positive spacing or a direction matrix that is not
// orthonormal.
type InvalidGeometryError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidGeometryError creates a new InvalidGeometryError
func NewInvalidGeometryError(field, reason string) error {
	return &InvalidGeometryError{Field: field, Reason: reason}
}

// Geometry describes how an image's index space maps to physical space:
//
//	world = Origin + Direction * (Spacing scaled index)
//
// where the index is first scaled component-wise by Spacing, then rotated
// (or reflected) by Direction, then translated by Origin. This mirrors the
// origin/spacing/direction triple carried by medical image headers. A
// Geometry is a plain value and is never mutated after creation.
type Geometry struct {
	// Origin is the physical position of the voxel at index (0, 0, 0).
	Origin [3]float64

	// Spacing is the physical size of one index step along each axis.
	// All components must be strictly positive.
	Spacing [3]float64

	// Direction holds the direction cosines: column c is the unit vector,
	// in physical space, of index axis c. The matrix must be orthonormal
	// to OrthonormalTolerance. Reflections (determinant -1) are legal;
	// medical orientation conventions produce them routinely.
	Direction [3][3]float64
}

// Identity returns the trivial geometry: zero origin, unit spacing, identity
// direction. Under it, world coordinates equal index coordinates.
func Identity() Geometry {
	return Geometry{
		Spacing: [3]float64{1, 1, 1},
		Direction: [3][3]float64{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		},
	}
}

// New builds a Geometry from its three components and validates it.
func New(origin, spacing [3]float64, direction [3][3]float64) (Geometry, error) {
	g := Geometry{Origin: origin, Spacing: spacing, Direction: direction}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks the geometry invariants: strictly positive spacing and an
// orthonormal direction matrix. The returned error is an
// *InvalidGeometryError naming the offending field.
func (g Geometry) Validate() error {
	for i, s := range g.Spacing {
		if !(s > 0) { // rejects zero, negatives and NaN alike
			return NewInvalidGeometryError("spacing",
				fmt.Sprintf("component %d is %v, must be > 0", i, s))
		}
	}

	// Orthonormal columns satisfy D^T * D = I.
	d := g.directionDense()
	var dtd mat.Dense
	dtd.Mul(d.T(), d)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			got := dtd.At(r, c)
			if math.IsNaN(got) || math.Abs(got-want) > OrthonormalTolerance {
				return NewInvalidGeometryError("direction", "matrix is not orthonormal")
			}
		}
	}

	return nil
}

// Transform maps a single index-space position to physical space. The index
// is scaled by spacing, rotated by the direction cosines and translated by
// the origin, in exactly that order. The geometry is validated first; the
// mapping itself is a pure function with no side effects.
func (g Geometry) Transform(index Index) (Point, error) {
	if err := g.Validate(); err != nil {
		return Point{}, err
	}
	return g.apply(index), nil
}

// TransformAll maps a whole index sequence to physical space in one pass.
// The geometry is validated once up front, then the mapping runs as a single
// 3xN matrix product over the spacing-scaled indices, so the per-point cost
// stays linear in the number of points. An empty input yields an empty,
// non-nil result; emptiness is not an error at this layer.
func (g Geometry) TransformAll(indices []Index) ([]Point, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	n := len(indices)
	points := make([]Point, n)
	if n == 0 {
		return points, nil
	}

	// Column i holds the spacing-scaled index i.
	scaled := mat.NewDense(3, n, nil)
	for i, idx := range indices {
		scaled.Set(0, i, g.Spacing[0]*idx[0])
		scaled.Set(1, i, g.Spacing[1]*idx[1])
		scaled.Set(2, i, g.Spacing[2]*idx[2])
	}

	var rotated mat.Dense
	rotated.Mul(g.directionDense(), scaled)

	for i := range points {
		points[i] = Point{
			g.Origin[0] + rotated.At(0, i),
			g.Origin[1] + rotated.At(1, i),
			g.Origin[2] + rotated.At(2, i),
		}
	}
	return points, nil
}

// ToIndex maps a physical-space position back to continuous index space.
// The direction matrix is orthonormal, so its inverse is its transpose:
// index = (D^T * (world - origin)) divided component-wise by spacing.
// The result is fractional in general; callers needing voxel addresses
// round it themselves.
func (g Geometry) ToIndex(p Point) (Index, error) {
	if err := g.Validate(); err != nil {
		return Index{}, err
	}

	tx := p[0] - g.Origin[0]
	ty := p[1] - g.Origin[1]
	tz := p[2] - g.Origin[2]

	var idx Index
	for c := 0; c < 3; c++ {
		// Row c of D^T is column c of Direction.
		idx[c] = (g.Direction[0][c]*tx + g.Direction[1][c]*ty + g.Direction[2][c]*tz) / g.Spacing[c]
	}
	return idx, nil
}

// apply performs the affine mapping without re-validating the geometry.
func (g Geometry) apply(index Index) Point {
	sx := g.Spacing[0] * index[0]
	sy := g.Spacing[1] * index[1]
	sz := g.Spacing[2] * index[2]

	var p Point
	for r := 0; r < 3; r++ {
		p[r] = g.Origin[r] + g.Direction[r][0]*sx + g.Direction[r][1]*sy + g.Direction[r][2]*sz
	}
	return p
}

// directionDense returns the direction cosines as a gonum matrix.
func (g Geometry) directionDense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		g.Direction[0][0], g.Direction[0][1], g.Direction[0][2],
		g.Direction[1][0], g.Direction[1][1], g.Direction[1][2],
		g.Direction[2][0], g.Direction[2][1], g.Direction[2][2],
	})
}
