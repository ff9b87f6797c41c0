package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"voxeldist/internal/models"
	"voxeldist/pkg/geometry"
)

// testVolume builds a 2x2x2 volume with a known hot voxel at (0,0,1).
func testVolume() *models.Volume {
	vol := models.NewVolume(2, 2, 2, geometry.Identity())
	vol.SetAt(0, 0, 1, 1.0)
	vol.SetAt(1, 1, 0, 0.5)
	return vol
}

// TestProjectZ verifies that projecting along Z keeps the per-ray maximum
// and normalizes it onto the full gray range.
func TestProjectZ(t *testing.T) {
	renderer := NewRenderer(testVolume())

	img, err := renderer.Project("z")
	if err != nil {
		t.Fatalf("Failed to project along z: %v", err)
	}

	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("Expected *image.Gray16, got %T", img)
	}
	if gray.Bounds().Dx() != 2 || gray.Bounds().Dy() != 2 {
		t.Fatalf("Expected 2x2 projection, got %dx%d", gray.Bounds().Dx(), gray.Bounds().Dy())
	}

	// The ray through (0,0) sees the hot voxel, so it maps to white.
	if v := gray.Gray16At(0, 0).Y; v != 65535 {
		t.Errorf("Expected white pixel at (0,0), got %d", v)
	}
	// Rays through background only map to black.
	if v := gray.Gray16At(1, 0).Y; v != 0 {
		t.Errorf("Expected black pixel at (1,0), got %d", v)
	}
	// The 0.5 voxel lands in between.
	if v := gray.Gray16At(1, 1).Y; v == 0 || v == 65535 {
		t.Errorf("Expected intermediate pixel at (1,1), got %d", v)
	}
}

// TestProjectionDimensions verifies the plane dimensions for each axis.
func TestProjectionDimensions(t *testing.T) {
	vol := models.NewVolume(3, 4, 5, geometry.Identity())
	renderer := NewRenderer(vol)

	cases := []struct {
		axis string
		w, h int
	}{
		{"x", 5, 4},
		{"y", 3, 5},
		{"z", 3, 4},
	}

	for _, tc := range cases {
		img, err := renderer.Project(tc.axis)
		if err != nil {
			t.Fatalf("Failed to project along %s: %v", tc.axis, err)
		}
		if img.Bounds().Dx() != tc.w || img.Bounds().Dy() != tc.h {
			t.Errorf("Expected %dx%d projection along %s, got %dx%d",
				tc.w, tc.h, tc.axis, img.Bounds().Dx(), img.Bounds().Dy())
		}
	}
}

// TestProjectInvalidAxis verifies that unknown axes are rejected.
func TestProjectInvalidAxis(t *testing.T) {
	renderer := NewRenderer(testVolume())

	if _, err := renderer.Project("w"); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestProjectConstantVolume verifies that a flat volume renders as black
// instead of dividing by a zero range.
func TestProjectConstantVolume(t *testing.T) {
	vol := models.NewVolume(2, 2, 2, geometry.Identity())
	for i := range vol.Data {
		vol.Data[i] = 3.5
	}

	img, err := NewRenderer(vol).Project("z")
	if err != nil {
		t.Fatalf("Failed to project constant volume: %v", err)
	}

	gray := img.(*image.Gray16)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if v := gray.Gray16At(x, y).Y; v != 0 {
				t.Errorf("Expected black pixel at (%d,%d), got %d", x, y, v)
			}
		}
	}
}

// TestFusedMIP verifies the two-channel overlay: first volume red, second
// green, overlap both.
func TestFusedMIP(t *testing.T) {
	a := models.NewVolume(3, 1, 1, geometry.Identity())
	b := models.NewVolume(3, 1, 1, geometry.Identity())
	a.SetAt(0, 0, 0, 1) // only in a
	b.SetAt(1, 0, 0, 1) // only in b
	a.SetAt(2, 0, 0, 1) // in both
	b.SetAt(2, 0, 0, 1)

	img, err := FusedMIP(a, b, "z")
	if err != nil {
		t.Fatalf("Failed to fuse projections: %v", err)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("Expected *image.RGBA, got %T", img)
	}

	if c := rgba.RGBAAt(0, 0); c.R != 255 || c.G != 0 {
		t.Errorf("Expected red pixel at (0,0), got R=%d G=%d", c.R, c.G)
	}
	if c := rgba.RGBAAt(1, 0); c.R != 0 || c.G != 255 {
		t.Errorf("Expected green pixel at (1,0), got R=%d G=%d", c.R, c.G)
	}
	if c := rgba.RGBAAt(2, 0); c.R != 255 || c.G != 255 {
		t.Errorf("Expected yellow pixel at (2,0), got R=%d G=%d", c.R, c.G)
	}
}

// TestFusedMIPRejectsMismatchedGrids verifies that differing dimensions
// are rejected.
func TestFusedMIPRejectsMismatchedGrids(t *testing.T) {
	a := models.NewVolume(2, 2, 2, geometry.Identity())
	b := models.NewVolume(2, 2, 3, geometry.Identity())

	if _, err := FusedMIP(a, b, "z"); err == nil {
		t.Error("Expected error for mismatched grids, got nil")
	}
}

// TestSaveProjectionSeries verifies that projections along all axes are
// written to disk.
func TestSaveProjectionSeries(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "projection-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	renderer := NewRenderer(testVolume())
	outputDir := filepath.Join(tempDir, "render")
	if err := renderer.SaveProjectionSeries(outputDir); err != nil {
		t.Fatalf("Failed to save projection series: %v", err)
	}

	for _, axis := range []string{"x", "y", "z"} {
		filename := filepath.Join(outputDir, "mip_"+axis+".jpg")
		info, err := os.Stat(filename)
		if err != nil {
			t.Errorf("Saved file does not exist: %s", filename)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("Saved file is empty: %s", filename)
		}
	}
}
