package nifti

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"lesionfilter/internal/models"
)

// Image is a decoded volume together with the header it was read from
type Image struct {
	Header *Header
	Grid   *models.VoxelGrid
}

// Read loads a .nii or .nii.gz file
func Read(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if isGzip(path) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	img, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode reads an uncompressed single-file NIfTI-1 stream
func Decode(r io.Reader) (*Image, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	h, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	size, err := bytesPerVoxel(h.Datatype)
	if err != nil {
		return nil, err
	}

	shape := h.Shape()
	n := shape.Len()
	start := int(h.VoxOffset)
	if start < HeaderSize {
		start = dataOffset
	}
	end := start + n*size
	if end > len(buf) {
		return nil, fmt.Errorf("%w: need %d data bytes at offset %d, file has %d",
			ErrMalformed, n*size, start, len(buf))
	}

	data := decodeValues(buf[start:end], h, n)

	return &Image{
		Header: h,
		Grid: &models.VoxelGrid{
			Shape:   shape,
			Spacing: h.Spacing(),
			Data:    data,
		},
	}, nil
}

// decodeValues converts raw voxel bytes to float64, applying intensity
// scaling when the header asks for it.
func decodeValues(b []byte, h *Header, n int) []float64 {
	o := h.order
	out := make([]float64, n)
	for i := range out {
		var v float64
		switch h.Datatype {
		case DTUint8:
			v = float64(b[i])
		case DTInt8:
			v = float64(int8(b[i]))
		case DTInt16:
			v = float64(int16(o.Uint16(b[2*i:])))
		case DTUint16:
			v = float64(o.Uint16(b[2*i:]))
		case DTInt32:
			v = float64(int32(o.Uint32(b[4*i:])))
		case DTUint32:
			v = float64(o.Uint32(b[4*i:]))
		case DTFloat32:
			v = float64(math.Float32frombits(o.Uint32(b[4*i:])))
		case DTInt64:
			v = float64(int64(o.Uint64(b[8*i:])))
		case DTUint64:
			v = float64(o.Uint64(b[8*i:]))
		case DTFloat64:
			v = math.Float64frombits(o.Uint64(b[8*i:]))
		}
		out[i] = v
	}

	if h.scaled() {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range out {
			out[i] = out[i]*slope + inter
		}
	}
	return out
}

// WriteMask writes mask as a uint8 volume (0 or 1) using the geometry of
// src. Fields other than the data type, scaling and data offset are copied
// from src unchanged.
func WriteMask(path string, src *Header, mask *models.BinaryMask) error {
	if err := mask.Validate(); err != nil {
		return err
	}
	grid := &models.VoxelGrid{Shape: mask.Shape, Data: make([]float64, len(mask.Data))}
	for i, v := range mask.Data {
		if v {
			grid.Data[i] = 1
		}
	}
	return WriteGrid(path, src, grid, DTUint8)
}

// WriteGrid writes grid with the given data type using the geometry of src.
// Values are stored unscaled.
func WriteGrid(path string, src *Header, grid *models.VoxelGrid, datatype int16) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if err := models.SameShape(src.Shape(), grid.Shape); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(f)
		w = zw
	}
	bw := bufio.NewWriter(w)

	err = Encode(bw, src, grid, datatype)
	if err == nil {
		err = bw.Flush()
	}
	if zw != nil {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Encode writes an uncompressed single-file NIfTI-1 stream
func Encode(w io.Writer, src *Header, grid *models.VoxelGrid, datatype int16) error {
	size, err := bytesPerVoxel(datatype)
	if err != nil {
		return err
	}

	h := src.Clone()
	h.Datatype = datatype
	h.Bitpix = int16(size * 8)
	h.VoxOffset = dataOffset
	h.SclSlope = 1
	h.SclInter = 0
	h.encode()
	copy(h.raw[offMagic:], "n+1\x00")
	if datatype == DTUint8 {
		h.order.PutUint32(h.raw[offCalMax:], math.Float32bits(1))
		h.order.PutUint32(h.raw[offCalMin:], math.Float32bits(0))
	}

	if _, err := w.Write(h.raw[:]); err != nil {
		return err
	}
	// Extension flag: no extensions follow
	if _, err := w.Write(make([]byte, dataOffset-HeaderSize)); err != nil {
		return err
	}

	o := h.order
	buf := make([]byte, len(grid.Data)*size)
	for i, v := range grid.Data {
		switch datatype {
		case DTUint8:
			buf[i] = uint8(v)
		case DTInt8:
			buf[i] = uint8(int8(v))
		case DTInt16:
			o.PutUint16(buf[2*i:], uint16(int16(v)))
		case DTUint16:
			o.PutUint16(buf[2*i:], uint16(v))
		case DTInt32:
			o.PutUint32(buf[4*i:], uint32(int32(v)))
		case DTUint32:
			o.PutUint32(buf[4*i:], uint32(v))
		case DTFloat32:
			o.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		case DTInt64:
			o.PutUint64(buf[8*i:], uint64(int64(v)))
		case DTUint64:
			o.PutUint64(buf[8*i:], uint64(v))
		case DTFloat64:
			o.PutUint64(buf[8*i:], math.Float64bits(v))
		}
	}
	_, err = w.Write(buf)
	return err
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
