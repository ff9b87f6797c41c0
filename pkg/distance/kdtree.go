package distance

import "gonum.org/v1/gonum/spatial/kdtree"

// treePoint adapts one point of a Set to kdtree.Comparable. Distances are
// kept squared, matching the scan kernels, so tree and scan paths compare
// identical values.
type treePoint []float64

// Compare returns the signed distance of p from the plane through c
// perpendicular to dimension d.
func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	return p[d] - q[d]
}

// Dims returns the number of dimensions described by the receiver.
func (p treePoint) Dims() int { return len(p) }

// Distance returns the squared Euclidean distance between c and the receiver.
func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	var sum float64
	for d := range p {
		diff := p[d] - q[d]
		sum += diff * diff
	}
	return sum
}

// treePoints is a collection of treePoint values that satisfies
// kdtree.Interface.
type treePoints []treePoint

// newTreePoints wraps the points of s for tree construction. The elements
// view the Set's backing storage, so s must not be mutated while the tree
// is in use.
func newTreePoints(s *Set) treePoints {
	pts := make(treePoints, s.n)
	for i := range pts {
		pts[i] = treePoint(s.At(i))
	}
	return pts
}

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p treePoints) Len() int                      { return len(p) }
func (p treePoints) Pivot(d kdtree.Dim) int {
	return pointPlane{treePoints: p, Dim: d}.Pivot()
}
func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// pointPlane wraps treePoints so it can be pivoted on a dimension.
type pointPlane struct {
	kdtree.Dim
	treePoints
}

func (p pointPlane) Less(i, j int) bool {
	return p.treePoints[i][p.Dim] < p.treePoints[j][p.Dim]
}
func (p pointPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100)) }
func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}
func (p pointPlane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}
