package morphology

import (
	"lesionfilter/internal/models"
)

// Dilate grows the mask by one voxel using the full 3x3x3 structuring
// element, so diagonal neighbors are included. Voxels outside the grid count
// as unset. The result is always a superset of the input.
//
// A cube is the Minkowski sum of three unit segments, one per axis, so the
// dilation runs as three 1-D passes instead of visiting 27 neighbors.
func Dilate(mask *models.BinaryMask) (*models.BinaryMask, error) {
	if err := mask.Validate(); err != nil {
		return nil, err
	}

	shape := mask.Shape
	cur := mask.Clone()
	tmp := models.NewBinaryMask(shape)

	strides := [3]int{1, shape.X, shape.X * shape.Y}
	extents := [3]int{shape.X, shape.Y, shape.Z}

	for axis := 0; axis < 3; axis++ {
		stride := strides[axis]
		extent := extents[axis]
		for i := range cur.Data {
			pos := (i / stride) % extent
			v := cur.Data[i]
			if !v && pos > 0 {
				v = cur.Data[i-stride]
			}
			if !v && pos < extent-1 {
				v = cur.Data[i+stride]
			}
			tmp.Data[i] = v
		}
		cur, tmp = tmp, cur
	}

	return cur, nil
}
