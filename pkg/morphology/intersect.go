package morphology

import (
	"lesionfilter/internal/models"
)

// Intersects reports whether a and b share at least one set voxel.
// Masks of different shape are an input error.
func Intersects(a, b *models.BinaryMask) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	if err := b.Validate(); err != nil {
		return false, err
	}
	if err := models.SameShape(a.Shape, b.Shape); err != nil {
		return false, err
	}

	for i, v := range a.Data {
		if v && b.Data[i] {
			return true, nil
		}
	}
	return false, nil
}

// IntersectsGrid reports whether any nonzero voxel of grid is set in mask.
// It is the raw-data form of Intersects and avoids materializing a mask.
func IntersectsGrid(grid *models.VoxelGrid, mask *models.BinaryMask) (bool, error) {
	if err := grid.Validate(); err != nil {
		return false, err
	}
	if err := mask.Validate(); err != nil {
		return false, err
	}
	if err := models.SameShape(grid.Shape, mask.Shape); err != nil {
		return false, err
	}

	for i, v := range grid.Data {
		if v != 0 && mask.Data[i] {
			return true, nil
		}
	}
	return false, nil
}
