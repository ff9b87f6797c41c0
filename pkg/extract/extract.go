// Package extract selects voxel indices from volumes. Which voxels belong
// to a point set is a policy decision external to the distance math; the
// downstream machinery only consumes the resulting index sequence, so each
// policy here is a plain function from volume to indices. An empty result is
// legal and is rejected later, by the distance engine.
package extract

import (
	"voxeldist/internal/models"
	"voxeldist/pkg/geometry"
)

// Foreground returns the indices of all voxels with a value greater than
// zero, the conventional reading of a binary segmentation mask.
func Foreground(vol *models.Volume) []geometry.Index {
	return AboveThreshold(vol, 0)
}

// AboveThreshold returns the indices of all voxels with a value strictly
// greater than t. Indices are emitted in deterministic z, then y, then x
// ascending scan order; order is irrelevant to the distance extremes but
// determinism keeps reported achieving pairs stable between runs.
func AboveThreshold(vol *models.Volume, t float64) []geometry.Index {
	var indices []geometry.Index
	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				if vol.At(x, y, z) > t {
					indices = append(indices, geometry.Index{float64(x), float64(y), float64(z)})
				}
			}
		}
	}
	return indices
}

// Label returns the indices of all voxels whose value equals label exactly,
// for multi-label segmentations where each structure carries its own
// integer value.
func Label(vol *models.Volume, label float64) []geometry.Index {
	var indices []geometry.Index
	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				if vol.At(x, y, z) == label {
					indices = append(indices, geometry.Index{float64(x), float64(y), float64(z)})
				}
			}
		}
	}
	return indices
}

// Boundary returns the indices of foreground voxels that touch the
// background through at least one of their six face neighbors. Foreground
// voxels on the volume border count as boundary. Surface-distance
// measurements conventionally run on boundary voxels, and for disjoint
// masks the distance extremes are achieved there, so this policy shrinks
// point sets without moving the surfaces they describe.
func Boundary(vol *models.Volume) []geometry.Index {
	var indices []geometry.Index
	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				if vol.At(x, y, z) <= 0 {
					continue
				}
				if touchesBackground(vol, x, y, z) {
					indices = append(indices, geometry.Index{float64(x), float64(y), float64(z)})
				}
			}
		}
	}
	return indices
}

var faceNeighbors = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// touchesBackground reports whether any of the six face neighbors of
// (x, y, z) is background or lies outside the volume.
func touchesBackground(vol *models.Volume, x, y, z int) bool {
	for _, d := range faceNeighbors {
		nx, ny, nz := x+d[0], y+d[1], z+d[2]
		if !vol.Inside(nx, ny, nz) {
			return true
		}
		if vol.At(nx, ny, nz) <= 0 {
			return true
		}
	}
	return false
}
