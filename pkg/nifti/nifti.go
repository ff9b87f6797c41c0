// Package nifti reads NIfTI-1 volumes, the interchange format used for
// segmentation masks in medical imaging pipelines.
//
// The reader supports single-file volumes (.nii, magic "n+1"), plain or
// gzip-compressed, in either byte order, for the scalar datatypes that
// occur in mask and intensity images. Multi-frame files yield their first
// frame. Spatial metadata is taken from the
// sform when present, from the qform quaternion otherwise, and from the
// raw pixel dimensions as a last resort. Coordinates are converted from
// the format's RAS+ convention to the LPS+ convention used by the
// geometry package, so positions agree with DICOM-derived tooling.
// Oblique orientations are supported; sheared mappings are rejected
// during geometry validation.
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"voxeldist/internal/models"
	"voxeldist/pkg/geometry"
)

// headerSize is the fixed size of the NIfTI-1 header.
const headerSize = 348

// NIfTI-1 datatype codes for the scalar types this reader supports.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

// header mirrors the on-disk nifti_1_header layout. Field order and sizes
// must not change: the struct is read with encoding/binary and packs to
// exactly 348 bytes.
type header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte
	Dim          [8]int16
	IntentP1     float32
	IntentP2     float32
	IntentP3     float32
	IntentCode   int16
	Datatype     int16
	Bitpix       int16
	SliceStart   int16
	Pixdim       [8]float32
	VoxOffset    float32
	SclSlope     float32
	SclInter     float32
	SliceEnd     int16
	SliceCode    byte
	XyztUnits    byte
	CalMax       float32
	CalMin       float32
	SliceDur     float32
	Toffset      float32
	Glmax        int32
	Glmin        int32
	Descrip      [80]byte
	AuxFile      [24]byte
	QformCode    int16
	SformCode    int16
	QuaternB     float32
	QuaternC     float32
	QuaternD     float32
	QoffsetX     float32
	QoffsetY     float32
	QoffsetZ     float32
	SrowX        [4]float32
	SrowY        [4]float32
	SrowZ        [4]float32
	IntentName   [16]byte
	Magic        [4]byte
}

// Read loads a NIfTI-1 volume from path. Both .nii and .nii.gz files are
// accepted; compression is detected from the stream, not the name.
func Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening volume: %w", err)
	}
	defer f.Close()

	vol, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return vol, nil
}

// Decode reads one NIfTI-1 volume from r.
func Decode(r io.Reader) (*models.Volume, error) {
	br := bufio.NewReader(r)

	// Sniff for gzip instead of trusting file extensions.
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		defer zr.Close()
		return decode(zr)
	}
	return decode(br)
}

func decode(r io.Reader) (*models.Volume, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	order, err := detectByteOrder(raw)
	if err != nil {
		return nil, err
	}

	var hdr header
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("error decoding header: %w", err)
	}
	if err := checkMagic(hdr.Magic); err != nil {
		return nil, err
	}

	width, height, depth, err := spatialDims(hdr.Dim)
	if err != nil {
		return nil, err
	}

	geom, err := volumeGeometry(&hdr)
	if err != nil {
		return nil, fmt.Errorf("error building volume geometry: %w", err)
	}

	// The voxel data starts at vox_offset; skip any header extensions.
	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		return nil, fmt.Errorf("invalid vox_offset %v, overlaps the header", hdr.VoxOffset)
	}
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("error skipping header extensions: %w", err)
		}
	}

	vol := models.NewVolume(width, height, depth, geom)
	if err := readSamples(r, order, hdr.Datatype, vol.Data); err != nil {
		return nil, err
	}

	// A zero slope means no scaling is defined.
	if slope, inter := float64(hdr.SclSlope), float64(hdr.SclInter); slope != 0 && (slope != 1 || inter != 0) {
		for i, v := range vol.Data {
			vol.Data[i] = v*slope + inter
		}
	}

	return vol, nil
}

// detectByteOrder infers the stream's byte order from sizeof_hdr, which is
// 348 in every valid NIfTI-1 file.
func detectByteOrder(raw []byte) (binary.ByteOrder, error) {
	switch {
	case binary.LittleEndian.Uint32(raw) == headerSize:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint32(raw) == headerSize:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("not a NIfTI-1 file: unrecognized header size")
}

func checkMagic(magic [4]byte) error {
	switch string(magic[:]) {
	case "n+1\x00":
		return nil
	case "ni1\x00":
		return fmt.Errorf("two-file NIfTI pairs (.hdr/.img) are not supported")
	}
	return fmt.Errorf("not a NIfTI-1 file: bad magic %q", magic[:])
}

// spatialDims extracts the three spatial dimensions. Higher dimensions are
// tolerated; a multi-frame file reads as its first frame, which occupies
// the leading width*height*depth samples of the data section.
func spatialDims(dim [8]int16) (width, height, depth int, err error) {
	ndim := int(dim[0])
	if ndim < 3 || ndim > 7 {
		return 0, 0, 0, fmt.Errorf("expected a 3-D volume, got %d dimensions", ndim)
	}
	for i := 1; i <= ndim; i++ {
		if dim[i] < 1 {
			return 0, 0, 0, fmt.Errorf("invalid extent %d along dimension %d", dim[i], i)
		}
	}
	return int(dim[1]), int(dim[2]), int(dim[3]), nil
}

// volumeGeometry derives the voxel-to-world mapping. Preference order is
// sform, qform, then bare pixel dimensions, following the format's
// recommendation. The result is converted from RAS+ to LPS+.
func volumeGeometry(hdr *header) (geometry.Geometry, error) {
	var origin, spacing [3]float64
	var direction [3][3]float64

	switch {
	case hdr.SformCode > 0:
		rows := [3][4]float32{hdr.SrowX, hdr.SrowY, hdr.SrowZ}
		for c := 0; c < 3; c++ {
			n := math.Sqrt(float64(rows[0][c])*float64(rows[0][c]) +
				float64(rows[1][c])*float64(rows[1][c]) +
				float64(rows[2][c])*float64(rows[2][c]))
			if n == 0 {
				return geometry.Geometry{}, fmt.Errorf("sform column %d has zero length", c)
			}
			spacing[c] = n
			for r := 0; r < 3; r++ {
				direction[r][c] = float64(rows[r][c]) / n
			}
		}
		origin = [3]float64{float64(hdr.SrowX[3]), float64(hdr.SrowY[3]), float64(hdr.SrowZ[3])}

	case hdr.QformCode > 0:
		direction = quaternionDirection(hdr)
		for i := 0; i < 3; i++ {
			spacing[i] = float64(hdr.Pixdim[i+1])
		}
		origin = [3]float64{float64(hdr.QoffsetX), float64(hdr.QoffsetY), float64(hdr.QoffsetZ)}

	default:
		direction = geometry.Identity().Direction
		for i := 0; i < 3; i++ {
			spacing[i] = float64(hdr.Pixdim[i+1])
			if spacing[i] <= 0 {
				spacing[i] = 1
			}
		}
	}

	// RAS+ to LPS+: flip the first two world axes.
	origin[0], origin[1] = -origin[0], -origin[1]
	for c := 0; c < 3; c++ {
		direction[0][c] = -direction[0][c]
		direction[1][c] = -direction[1][c]
	}

	return geometry.New(origin, spacing, direction)
}

// quaternionDirection reconstructs the qform rotation. The scalar part is
// recovered from the unit constraint, and pixdim[0] carries the handedness
// flag qfac applied to the third column.
func quaternionDirection(hdr *header) [3][3]float64 {
	b := float64(hdr.QuaternB)
	c := float64(hdr.QuaternC)
	d := float64(hdr.QuaternD)
	a := math.Sqrt(math.Max(0, 1-b*b-c*c-d*d))

	dir := [3][3]float64{
		{a*a + b*b - c*c - d*d, 2*b*c - 2*a*d, 2*b*d + 2*a*c},
		{2*b*c + 2*a*d, a*a + c*c - b*b - d*d, 2*c*d - 2*a*b},
		{2*b*d - 2*a*c, 2*c*d + 2*a*b, a*a + d*d - c*c - b*b},
	}

	qfac := float64(hdr.Pixdim[0])
	if qfac == 0 {
		qfac = 1
	}
	if qfac < 0 {
		for r := 0; r < 3; r++ {
			dir[r][2] = -dir[r][2]
		}
	}
	return dir
}

// readSamples reads width*height*depth voxels of the given datatype into
// out as float64. The sample order on disk matches the volume's layout, x
// fastest, so no reordering is needed.
func readSamples(r io.Reader, order binary.ByteOrder, datatype int16, out []float64) error {
	var err error
	switch datatype {
	case dtUint8:
		buf := make([]uint8, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtInt8:
		buf := make([]int8, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtInt16:
		buf := make([]int16, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtUint16:
		buf := make([]uint16, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtInt32:
		buf := make([]int32, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtUint32:
		buf := make([]uint32, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtFloat32:
		buf := make([]float32, len(out))
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				out[i] = float64(v)
			}
		}
	case dtFloat64:
		err = binary.Read(r, order, out)
	default:
		return fmt.Errorf("unsupported datatype %d", datatype)
	}
	if err != nil {
		return fmt.Errorf("error reading voxel data: %w", err)
	}
	return nil
}
