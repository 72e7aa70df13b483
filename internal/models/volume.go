package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidInput is returned when a grid, mask or parameter is malformed:
// non-positive spacing or radius, inconsistent data length, or two masks
// whose shapes differ.
var ErrInvalidInput = errors.New("invalid input")

// Shape is the extent of a volume in voxels along each axis
type Shape struct {
	X, Y, Z int
}

// Len returns the number of voxels in the shape
func (s Shape) Len() int {
	return s.X * s.Y * s.Z
}

// Index returns the flat index of voxel (x, y, z).
// Data is stored with x varying fastest, then y, then z, which is the
// on-disk order of NIfTI volumes.
func (s Shape) Index(x, y, z int) int {
	return z*s.X*s.Y + y*s.X + x
}

// Contains reports whether (x, y, z) lies inside the shape
func (s Shape) Contains(x, y, z int) bool {
	return x >= 0 && x < s.X && y >= 0 && y < s.Y && z >= 0 && z < s.Z
}

// Validate checks that every extent is positive
func (s Shape) Validate() error {
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return fmt.Errorf("%w: shape %v must be positive on every axis", ErrInvalidInput, s)
	}
	return nil
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.X, s.Y, s.Z)
}

// Spacing is the physical size of a voxel along each axis, typically in mm
type Spacing struct {
	X, Y, Z float64
}

// Validate checks that every component is a finite positive number
func (s Spacing) Validate() error {
	for _, v := range []float64{s.X, s.Y, s.Z} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: spacing (%g, %g, %g) must be positive", ErrInvalidInput, s.X, s.Y, s.Z)
		}
	}
	return nil
}

// VoxelVolume returns the physical volume of a single voxel
func (s Spacing) VoxelVolume() float64 {
	return floats.Prod([]float64{s.X, s.Y, s.Z})
}

// VoxelGrid is a scalar 3D volume together with its voxel spacing.
// A voxel is foreground when its value is nonzero.
type VoxelGrid struct {
	// Shape is the extent of the grid in voxels
	Shape Shape

	// Spacing is the physical voxel size
	Spacing Spacing

	// Data holds Shape.Len() values in Shape.Index order
	Data []float64
}

// NewVoxelGrid allocates a zero-filled grid
func NewVoxelGrid(shape Shape, spacing Spacing) *VoxelGrid {
	n := 0
	if shape.Validate() == nil {
		n = shape.Len()
	}
	return &VoxelGrid{
		Shape:   shape,
		Spacing: spacing,
		Data:    make([]float64, n),
	}
}

// Validate checks the shape and that the data length matches it.
// Spacing is validated separately, only where it is used.
func (g *VoxelGrid) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrInvalidInput)
	}
	if err := g.Shape.Validate(); err != nil {
		return err
	}
	if len(g.Data) != g.Shape.Len() {
		return fmt.Errorf("%w: grid has %d values, shape %v needs %d",
			ErrInvalidInput, len(g.Data), g.Shape, g.Shape.Len())
	}
	return nil
}

// Set assigns the value at (x, y, z)
func (g *VoxelGrid) Set(x, y, z int, v float64) {
	g.Data[g.Shape.Index(x, y, z)] = v
}

// At returns the value at (x, y, z)
func (g *VoxelGrid) At(x, y, z int) float64 {
	return g.Data[g.Shape.Index(x, y, z)]
}

// Mask returns a binary mask that is true wherever the grid is nonzero.
// Negative values, including negative organ labels, count as foreground.
func (g *VoxelGrid) Mask() *BinaryMask {
	m := NewBinaryMask(g.Shape)
	for i, v := range g.Data {
		m.Data[i] = v != 0
	}
	return m
}

// ForegroundCount returns the number of nonzero voxels
func (g *VoxelGrid) ForegroundCount() int {
	n := 0
	for _, v := range g.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// LabelMap assigns every voxel of a source grid a component label.
// Label 0 is background; labels 1..NumComponents are connected regions.
type LabelMap struct {
	// Shape matches the source grid
	Shape Shape

	// Labels holds one label per voxel in Shape.Index order
	Labels []int32

	// NumComponents is the number of distinct positive labels
	NumComponents int
}

// Validate checks the shape and that the label slice matches it
func (l *LabelMap) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: nil label map", ErrInvalidInput)
	}
	if err := l.Shape.Validate(); err != nil {
		return err
	}
	if len(l.Labels) != l.Shape.Len() {
		return fmt.Errorf("%w: label map has %d values, shape %v needs %d",
			ErrInvalidInput, len(l.Labels), l.Shape, l.Shape.Len())
	}
	if l.NumComponents < 0 {
		return fmt.Errorf("%w: negative component count %d", ErrInvalidInput, l.NumComponents)
	}
	for i, lbl := range l.Labels {
		if lbl < 0 || int(lbl) > l.NumComponents {
			return fmt.Errorf("%w: label %d at voxel %d outside [0, %d]",
				ErrInvalidInput, lbl, i, l.NumComponents)
		}
	}
	return nil
}

// Counts returns the number of voxels carrying each label, indexed by label.
// Index 0 is the background count. The map must be valid.
func (l *LabelMap) Counts() []int {
	counts := make([]int, l.NumComponents+1)
	for _, lbl := range l.Labels {
		counts[lbl]++
	}
	return counts
}

// BinaryMask is a boolean 3D volume
type BinaryMask struct {
	// Shape is the extent of the mask in voxels
	Shape Shape

	// Data holds Shape.Len() flags in Shape.Index order
	Data []bool
}

// NewBinaryMask allocates an all-false mask
func NewBinaryMask(shape Shape) *BinaryMask {
	n := 0
	if shape.Validate() == nil {
		n = shape.Len()
	}
	return &BinaryMask{
		Shape: shape,
		Data:  make([]bool, n),
	}
}

// Validate checks the shape and that the data length matches it
func (m *BinaryMask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrInvalidInput)
	}
	if err := m.Shape.Validate(); err != nil {
		return err
	}
	if len(m.Data) != m.Shape.Len() {
		return fmt.Errorf("%w: mask has %d values, shape %v needs %d",
			ErrInvalidInput, len(m.Data), m.Shape, m.Shape.Len())
	}
	return nil
}

// Set assigns the flag at (x, y, z)
func (m *BinaryMask) Set(x, y, z int, v bool) {
	m.Data[m.Shape.Index(x, y, z)] = v
}

// At returns the flag at (x, y, z)
func (m *BinaryMask) At(x, y, z int) bool {
	return m.Data[m.Shape.Index(x, y, z)]
}

// Any reports whether at least one voxel is set
func (m *BinaryMask) Any() bool {
	for _, v := range m.Data {
		if v {
			return true
		}
	}
	return false
}

// Count returns the number of set voxels
func (m *BinaryMask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask
func (m *BinaryMask) Clone() *BinaryMask {
	data := make([]bool, len(m.Data))
	copy(data, m.Data)
	return &BinaryMask{Shape: m.Shape, Data: data}
}

// Contains reports whether every voxel set in other is also set in m.
// Masks of different shape never contain each other.
func (m *BinaryMask) Contains(other *BinaryMask) bool {
	if m.Shape != other.Shape || len(m.Data) != len(other.Data) {
		return false
	}
	for i, v := range other.Data {
		if v && !m.Data[i] {
			return false
		}
	}
	return true
}

// SameShape returns ErrInvalidInput when the two shapes differ
func SameShape(a, b Shape) error {
	if a != b {
		return fmt.Errorf("%w: shape mismatch %v vs %v", ErrInvalidInput, a, b)
	}
	return nil
}
