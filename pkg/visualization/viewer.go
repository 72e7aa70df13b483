package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"lesionfilter/internal/models"
)

// Overlay colors
var (
	backgroundColor = color.RGBA{0, 0, 0, 255}
	organColor      = color.RGBA{96, 96, 96, 255}
	tumorColor      = color.RGBA{220, 40, 40, 255}
	overlapColor    = color.RGBA{250, 210, 40, 255}
)

// Viewer renders 2D overlays of a lesion mask on top of its organ mask
// for visual quality checks.
type Viewer struct {
	// tumor is the lesion mask being inspected
	tumor *models.BinaryMask

	// organ is the reference organ mask; may be nil
	organ *models.BinaryMask

	shape models.Shape
}

// NewViewer creates a viewer for a lesion mask and, optionally, its organ mask
func NewViewer(tumor, organ *models.BinaryMask) (*Viewer, error) {
	if err := tumor.Validate(); err != nil {
		return nil, err
	}
	if organ != nil {
		if err := organ.Validate(); err != nil {
			return nil, err
		}
		if err := models.SameShape(tumor.Shape, organ.Shape); err != nil {
			return nil, err
		}
	}
	return &Viewer{tumor: tumor, organ: organ, shape: tumor.Shape}, nil
}

// axisExtent returns the number of slices along axis
func (v *Viewer) axisExtent(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.shape.X, nil
	case "y", "Y":
		return v.shape.Y, nil
	case "z", "Z":
		return v.shape.Z, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// voxelColor picks the overlay color for one voxel index
func (v *Viewer) voxelColor(idx int) color.RGBA {
	t := v.tumor.Data[idx]
	o := v.organ != nil && v.organ.Data[idx]
	switch {
	case t && o:
		return overlapColor
	case t:
		return tumorColor
	case o:
		return organColor
	default:
		return backgroundColor
	}
}

// ExtractSlice renders the overlay of one plane.
// An x slice spans (z, y), a y slice spans (x, z) and a z slice spans (x, y).
func (v *Viewer) ExtractSlice(axis string, position int) (*image.RGBA, error) {
	extent, err := v.axisExtent(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= extent {
		return nil, fmt.Errorf("position %d outside [0, %d) on axis %s", position, extent, axis)
	}

	s := v.shape
	var img *image.RGBA

	switch axis {
	case "x", "X":
		img = image.NewRGBA(image.Rect(0, 0, s.Z, s.Y))
		for y := 0; y < s.Y; y++ {
			for z := 0; z < s.Z; z++ {
				img.SetRGBA(z, y, v.voxelColor(s.Index(position, y, z)))
			}
		}
	case "y", "Y":
		img = image.NewRGBA(image.Rect(0, 0, s.X, s.Z))
		for z := 0; z < s.Z; z++ {
			for x := 0; x < s.X; x++ {
				img.SetRGBA(x, z, v.voxelColor(s.Index(x, position, z)))
			}
		}
	default:
		img = image.NewRGBA(image.Rect(0, 0, s.X, s.Y))
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				img.SetRGBA(x, y, v.voxelColor(s.Index(x, y, position)))
			}
		}
	}

	return img, nil
}

// BestSlice returns the slice along axis with the most lesion voxels.
// Ties go to the lowest position; an empty lesion yields the middle slice.
func (v *Viewer) BestSlice(axis string) (int, error) {
	extent, err := v.axisExtent(axis)
	if err != nil {
		return 0, err
	}

	counts := make([]int, extent)
	s := v.shape
	for z := 0; z < s.Z; z++ {
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				if !v.tumor.Data[s.Index(x, y, z)] {
					continue
				}
				switch axis {
				case "x", "X":
					counts[x]++
				case "y", "Y":
					counts[y]++
				default:
					counts[z]++
				}
			}
		}
	}

	best, bestCount := extent/2, 0
	for pos, n := range counts {
		if n > bestCount {
			best, bestCount = pos, n
		}
	}
	return best, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SavePreview renders the axial slice with the most lesion voxels to filename
func (v *Viewer) SavePreview(filename string) error {
	pos, err := v.BestSlice("z")
	if err != nil {
		return err
	}
	img, err := v.ExtractSlice("z", pos)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return v.SaveSlice(img, filename)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	maxPos, err := v.axisExtent(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
