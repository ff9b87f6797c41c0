package models

import (
	"voxeldist/pkg/geometry"
)

// Volume represents a 3D medical image: a dense voxel grid together with
// the geometry that places it in physical space.
type Volume struct {
	// Data is the voxel values as a 1D array in x-fastest order:
	// index = z*Width*Height + y*Width + x.
	Data []float64

	// Width is the number of voxels along the x axis.
	Width int

	// Height is the number of voxels along the y axis.
	Height int

	// Depth is the number of voxels along the z axis.
	Depth int

	// Geometry maps voxel indices of this volume to physical space.
	Geometry geometry.Geometry
}

// NewVolume allocates a zero-filled volume with the given dimensions and
// geometry.
func NewVolume(width, height, depth int, geom geometry.Geometry) *Volume {
	return &Volume{
		Data:     make([]float64, width*height*depth),
		Width:    width,
		Height:   height,
		Depth:    depth,
		Geometry: geom,
	}
}

// At returns the voxel value at (x, y, z). Bounds checking is the caller's
// responsibility.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}

// SetAt stores a voxel value at (x, y, z).
func (v *Volume) SetAt(x, y, z int, value float64) {
	v.Data[z*v.Width*v.Height+y*v.Width+x] = value
}

// NumVoxels returns the total number of voxels in the volume.
func (v *Volume) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// Inside reports whether (x, y, z) addresses a voxel within the volume
// bounds.
func (v *Volume) Inside(x, y, z int) bool {
	return x >= 0 && x < v.Width && y >= 0 && y < v.Height && z >= 0 && z < v.Depth
}
