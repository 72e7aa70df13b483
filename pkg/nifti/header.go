// Package nifti reads and writes single-file NIfTI-1 volumes (.nii and
// .nii.gz). Only what mask post-processing needs is interpreted: the
// dimensions, voxel spacing, data type and intensity scaling. Every other
// header field, including the qform/sform affine, is carried through to the
// written file byte for byte.
package nifti

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"lesionfilter/internal/models"
)

const (
	// HeaderSize is the size of a NIfTI-1 header in bytes
	HeaderSize = 348

	// dataOffset is where voxel data starts in files we write: the header
	// followed by a 4-byte extension flag.
	dataOffset = 352
)

// NIfTI-1 data type codes
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
	DTInt64   int16 = 1024
	DTUint64  int16 = 1280
)

// Header field offsets
const (
	offDim      = 40
	offDatatype = 70
	offBitpix   = 72
	offPixdim   = 76
	offVoxOff   = 108
	offSclSlope = 112
	offSclInter = 116
	offXYZTUnit = 123
	offCalMax   = 124
	offCalMin   = 128
	offMagic    = 344
)

var (
	// ErrMalformed is returned for files that are not valid NIfTI-1
	ErrMalformed = errors.New("malformed nifti file")

	// ErrUnsupported is returned for valid files this package cannot handle
	ErrUnsupported = errors.New("unsupported nifti file")
)

// Header is a parsed NIfTI-1 header. The raw bytes are kept so that fields
// not interpreted here survive a read/write cycle unchanged.
type Header struct {
	raw   [HeaderSize]byte
	order binary.ByteOrder

	// Dim holds dim[0..7]; Dim[0] is the number of dimensions
	Dim [8]int16

	// Datatype is the on-disk voxel type code
	Datatype int16

	// Bitpix is the number of bits per voxel
	Bitpix int16

	// Pixdim holds pixdim[0..7]; Pixdim[1..3] are the voxel sizes
	Pixdim [8]float32

	// VoxOffset is the byte offset of the voxel data
	VoxOffset float32

	// SclSlope and SclInter map stored values to real values
	SclSlope float32
	SclInter float32
}

// NewHeader returns a little-endian single-file header for a uint8 volume
// with the given shape and spacing in millimetres.
func NewHeader(shape models.Shape, spacing models.Spacing) *Header {
	h := &Header{order: binary.LittleEndian}
	binary.LittleEndian.PutUint32(h.raw[0:4], HeaderSize)
	copy(h.raw[offMagic:], "n+1\x00")
	h.raw[offXYZTUnit] = 2 // NIFTI_UNITS_MM

	h.Dim = [8]int16{3, int16(shape.X), int16(shape.Y), int16(shape.Z), 1, 1, 1, 1}
	h.Pixdim = [8]float32{1, float32(spacing.X), float32(spacing.Y), float32(spacing.Z), 0, 0, 0, 0}
	h.Datatype = DTUint8
	h.Bitpix = 8
	h.VoxOffset = dataOffset
	h.SclSlope = 1
	h.encode()
	return h
}

// parseHeader decodes the first HeaderSize bytes of a file
func parseHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrMalformed, len(b))
	}

	h := &Header{}
	copy(h.raw[:], b[:HeaderSize])

	switch {
	case binary.LittleEndian.Uint32(b[0:4]) == HeaderSize:
		h.order = binary.LittleEndian
	case binary.BigEndian.Uint32(b[0:4]) == HeaderSize:
		h.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: sizeof_hdr is not %d", ErrMalformed, HeaderSize)
	}

	magic := string(h.raw[offMagic : offMagic+3])
	switch magic {
	case "n+1":
	case "ni1":
		return nil, fmt.Errorf("%w: header/image pair files are not supported", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformed, magic)
	}

	for i := range h.Dim {
		h.Dim[i] = int16(h.order.Uint16(h.raw[offDim+2*i:]))
	}
	for i := range h.Pixdim {
		h.Pixdim[i] = math.Float32frombits(h.order.Uint32(h.raw[offPixdim+4*i:]))
	}
	h.Datatype = int16(h.order.Uint16(h.raw[offDatatype:]))
	h.Bitpix = int16(h.order.Uint16(h.raw[offBitpix:]))
	h.VoxOffset = math.Float32frombits(h.order.Uint32(h.raw[offVoxOff:]))
	h.SclSlope = math.Float32frombits(h.order.Uint32(h.raw[offSclSlope:]))
	h.SclInter = math.Float32frombits(h.order.Uint32(h.raw[offSclInter:]))

	if err := h.checkDims(); err != nil {
		return nil, err
	}
	return h, nil
}

// checkDims accepts 1-3 dimensional data and 4-7 dimensional data whose
// extra dimensions all have extent 1.
func (h *Header) checkDims() error {
	n := int(h.Dim[0])
	if n < 1 || n > 7 {
		return fmt.Errorf("%w: dim[0]=%d", ErrMalformed, n)
	}
	for i := 1; i <= n; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d]=%d", ErrMalformed, i, h.Dim[i])
		}
		if i > 3 && h.Dim[i] != 1 {
			return fmt.Errorf("%w: %d-dimensional volume with dim[%d]=%d", ErrUnsupported, n, i, h.Dim[i])
		}
	}
	return nil
}

// encode writes the interpreted fields back into the raw bytes
func (h *Header) encode() {
	for i, d := range h.Dim {
		h.order.PutUint16(h.raw[offDim+2*i:], uint16(d))
	}
	for i, p := range h.Pixdim {
		h.order.PutUint32(h.raw[offPixdim+4*i:], math.Float32bits(p))
	}
	h.order.PutUint16(h.raw[offDatatype:], uint16(h.Datatype))
	h.order.PutUint16(h.raw[offBitpix:], uint16(h.Bitpix))
	h.order.PutUint32(h.raw[offVoxOff:], math.Float32bits(h.VoxOffset))
	h.order.PutUint32(h.raw[offSclSlope:], math.Float32bits(h.SclSlope))
	h.order.PutUint32(h.raw[offSclInter:], math.Float32bits(h.SclInter))
}

// Shape returns the spatial extent; missing dimensions count as 1
func (h *Header) Shape() models.Shape {
	s := models.Shape{X: 1, Y: 1, Z: 1}
	n := int(h.Dim[0])
	if n >= 1 {
		s.X = int(h.Dim[1])
	}
	if n >= 2 {
		s.Y = int(h.Dim[2])
	}
	if n >= 3 {
		s.Z = int(h.Dim[3])
	}
	return s
}

// Spacing returns the voxel sizes from pixdim[1..3]. Dimensions beyond
// dim[0] report a spacing of 1.
func (h *Header) Spacing() models.Spacing {
	sp := [3]float64{1, 1, 1}
	for i := 0; i < 3 && i < int(h.Dim[0]); i++ {
		sp[i] = float64(h.Pixdim[i+1])
	}
	return models.Spacing{X: sp[0], Y: sp[1], Z: sp[2]}
}

// ByteOrder returns the byte order the header was stored in
func (h *Header) ByteOrder() binary.ByteOrder {
	return h.order
}

// Raw returns a copy of the header bytes as they would be written
func (h *Header) Raw() []byte {
	c := h.Clone()
	c.encode()
	out := make([]byte, HeaderSize)
	copy(out, c.raw[:])
	return out
}

// Clone returns an independent copy of the header
func (h *Header) Clone() *Header {
	c := *h
	return &c
}

// scaled reports whether stored values must be mapped through
// scl_slope/scl_inter.
func (h *Header) scaled() bool {
	s := float64(h.SclSlope)
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return false
	}
	return s != 1 || h.SclInter != 0
}

// bytesPerVoxel returns the storage size for a data type code
func bytesPerVoxel(dt int16) (int, error) {
	switch dt {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTUint32, DTFloat32:
		return 4, nil
	case DTInt64, DTUint64, DTFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: datatype %d", ErrUnsupported, dt)
	}
}
