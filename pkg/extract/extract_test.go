package extract

import (
	"testing"

	"voxeldist/internal/models"
	"voxeldist/pkg/geometry"
)

// TestForeground verifies that foreground extraction finds exactly the
// voxels with positive values, in z, y, x scan order.
func TestForeground(t *testing.T) {
	vol := models.NewVolume(4, 3, 2, geometry.Identity())
	vol.SetAt(1, 0, 0, 1)
	vol.SetAt(3, 2, 0, 2)
	vol.SetAt(0, 1, 1, 0.5)

	indices := Foreground(vol)
	if len(indices) != 3 {
		t.Fatalf("Expected 3 foreground indices, got %d", len(indices))
	}

	want := []geometry.Index{
		{1, 0, 0},
		{3, 2, 0},
		{0, 1, 1},
	}
	for i, idx := range want {
		if indices[i] != idx {
			t.Errorf("Expected index %d to be %v, got %v", i, idx, indices[i])
		}
	}
}

// TestForegroundEmpty verifies that a volume with no positive voxels yields
// an empty index sequence rather than an error.
func TestForegroundEmpty(t *testing.T) {
	vol := models.NewVolume(3, 3, 3, geometry.Identity())
	if indices := Foreground(vol); len(indices) != 0 {
		t.Errorf("Expected no indices for an empty mask, got %d", len(indices))
	}
}

// TestAboveThreshold verifies that the threshold is strict.
func TestAboveThreshold(t *testing.T) {
	vol := models.NewVolume(3, 1, 1, geometry.Identity())
	vol.SetAt(0, 0, 0, 0.5)
	vol.SetAt(1, 0, 0, 1.0)
	vol.SetAt(2, 0, 0, 1.5)

	indices := AboveThreshold(vol, 1.0)
	if len(indices) != 1 {
		t.Fatalf("Expected 1 index above threshold 1.0, got %d", len(indices))
	}
	if indices[0] != (geometry.Index{2, 0, 0}) {
		t.Errorf("Expected index (2,0,0), got %v", indices[0])
	}
}

// TestLabel verifies exact-match extraction for multi-label segmentations.
func TestLabel(t *testing.T) {
	vol := models.NewVolume(2, 2, 1, geometry.Identity())
	vol.SetAt(0, 0, 0, 1)
	vol.SetAt(1, 0, 0, 2)
	vol.SetAt(0, 1, 0, 2)
	vol.SetAt(1, 1, 0, 3)

	indices := Label(vol, 2)
	if len(indices) != 2 {
		t.Fatalf("Expected 2 voxels with label 2, got %d", len(indices))
	}
	if indices[0] != (geometry.Index{1, 0, 0}) || indices[1] != (geometry.Index{0, 1, 0}) {
		t.Errorf("Expected indices (1,0,0) and (0,1,0), got %v", indices)
	}
}

// TestBoundary verifies that a filled cube keeps its shell and drops its
// interior: a 3x3x3 block has 27 voxels of which only the center is
// interior.
func TestBoundary(t *testing.T) {
	vol := models.NewVolume(5, 5, 5, geometry.Identity())
	for z := 1; z <= 3; z++ {
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 3; x++ {
				vol.SetAt(x, y, z, 1)
			}
		}
	}

	boundary := Boundary(vol)
	if len(boundary) != 26 {
		t.Errorf("Expected 26 boundary voxels for a 3x3x3 block, got %d", len(boundary))
	}

	for _, idx := range boundary {
		if idx == (geometry.Index{2, 2, 2}) {
			t.Error("Interior voxel (2,2,2) reported as boundary")
		}
	}

	// The full extraction keeps all 27.
	if all := Foreground(vol); len(all) != 27 {
		t.Errorf("Expected 27 foreground voxels, got %d", len(all))
	}
}

// TestBoundaryAtVolumeBorder verifies that foreground voxels on the volume
// border count as boundary even without a background neighbor inside the
// grid.
func TestBoundaryAtVolumeBorder(t *testing.T) {
	vol := models.NewVolume(2, 2, 2, geometry.Identity())
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				vol.SetAt(x, y, z, 1)
			}
		}
	}

	boundary := Boundary(vol)
	if len(boundary) != 8 {
		t.Errorf("Expected all 8 voxels of a fully filled volume to be boundary, got %d", len(boundary))
	}
}
