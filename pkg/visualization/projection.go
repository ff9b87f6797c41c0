// Package visualization renders maximum intensity projections of volumes
// so extraction inputs and measured structures can be inspected visually.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"voxeldist/internal/models"
)

// Renderer produces 2D projections of a single volume.
type Renderer struct {
	vol *models.Volume
}

// NewRenderer creates a renderer for the given volume.
func NewRenderer(vol *models.Volume) *Renderer {
	return &Renderer{vol: vol}
}

// Project collapses the volume along the specified axis by taking the
// maximum value along each ray, and returns the projection as a 16-bit
// grayscale image normalized to the projected value range.
func (r *Renderer) Project(axis string) (image.Image, error) {
	values, w, h, err := project(r.vol, axis)
	if err != nil {
		return nil, err
	}

	lo, hi := valueRange(values)
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: normalize16(values[y*w+x], lo, hi)})
		}
	}
	return img, nil
}

// SaveJPEG saves a rendered image as a JPEG file.
func (r *Renderer) SaveJPEG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveProjectionSeries renders and saves the projections along all three
// axes into outputDir.
func (r *Renderer) SaveProjectionSeries(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for _, axis := range []string{"x", "y", "z"} {
		img, err := r.Project(axis)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("mip_%s.jpg", axis))
		if err := r.SaveJPEG(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// FusedMIP projects two volumes along the same axis into one RGBA image,
// the first volume on the red channel and the second on green, so overlap
// shows as yellow. Both volumes must share the same grid dimensions; each
// channel is normalized independently.
func FusedMIP(a, b *models.Volume, axis string) (image.Image, error) {
	if a.Width != b.Width || a.Height != b.Height || a.Depth != b.Depth {
		return nil, fmt.Errorf("volumes have different dimensions: %dx%dx%d and %dx%dx%d",
			a.Width, a.Height, a.Depth, b.Width, b.Height, b.Depth)
	}

	red, w, h, err := project(a, axis)
	if err != nil {
		return nil, err
	}
	green, _, _, err := project(b, axis)
	if err != nil {
		return nil, err
	}

	redLo, redHi := valueRange(red)
	greenLo, greenHi := valueRange(green)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: normalize8(red[y*w+x], redLo, redHi),
				G: normalize8(green[y*w+x], greenLo, greenHi),
				A: 255,
			})
		}
	}
	return img, nil
}

// project computes the maximum along each ray of the given axis. The
// returned plane is laid out row-major with the stated width and height.
func project(vol *models.Volume, axis string) (values []float64, w, h int, err error) {
	switch axis {
	case "x", "X":
		// Collapse X, image spans ZY
		w, h = vol.Depth, vol.Height
		values = make([]float64, w*h)
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				max := math.Inf(-1)
				for x := 0; x < vol.Width; x++ {
					if v := vol.At(x, y, z); v > max {
						max = v
					}
				}
				values[y*w+z] = max
			}
		}

	case "y", "Y":
		// Collapse Y, image spans XZ
		w, h = vol.Width, vol.Depth
		values = make([]float64, w*h)
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				max := math.Inf(-1)
				for y := 0; y < vol.Height; y++ {
					if v := vol.At(x, y, z); v > max {
						max = v
					}
				}
				values[z*w+x] = max
			}
		}

	case "z", "Z":
		// Collapse Z, image spans XY
		w, h = vol.Width, vol.Height
		values = make([]float64, w*h)
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				max := math.Inf(-1)
				for z := 0; z < vol.Depth; z++ {
					if v := vol.At(x, y, z); v > max {
						max = v
					}
				}
				values[y*w+x] = max
			}
		}

	default:
		return nil, 0, 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return values, w, h, nil
}

func valueRange(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// normalize16 maps v from [lo, hi] onto the 16-bit gray range. A constant
// plane maps to black.
func normalize16(v, lo, hi float64) uint16 {
	if hi <= lo {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, (v-lo)/(hi-lo)*65535)))
}

// normalize8 maps v from [lo, hi] onto an 8-bit channel.
func normalize8(v, lo, hi float64) uint8 {
	if hi <= lo {
		return 0
	}
	return uint8(math.Max(0, math.Min(255, (v-lo)/(hi-lo)*255)))
}
