// Package morphology implements the volumetric operations used to clean
// lesion masks: connected-component labeling, volume filtering, binary
// dilation and intersection tests. Every function allocates its result and
// leaves its inputs untouched, so callers may share inputs across goroutines.
package morphology

import (
	"lesionfilter/internal/models"
)

// faceOffsets is the 6-neighborhood: one unit step along exactly one axis.
var faceOffsets = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Label assigns a unique positive label to each maximal face-connected
// region of nonzero voxels. Background voxels get label 0.
//
// Labels are numbered 1..N in scan order (x fastest, then y, then z), so
// the same grid always produces the same label map.
func Label(grid *models.VoxelGrid) (*models.LabelMap, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	shape := grid.Shape
	labels := make([]int32, shape.Len())
	var next int32

	queue := make([]int, 0, 1024)

	for z := 0; z < shape.Z; z++ {
		for y := 0; y < shape.Y; y++ {
			for x := 0; x < shape.X; x++ {
				idx := shape.Index(x, y, z)
				if grid.Data[idx] == 0 || labels[idx] != 0 {
					continue
				}

				next++
				labels[idx] = next
				queue = append(queue[:0], idx)

				// Breadth-first flood fill from the seed voxel
				for head := 0; head < len(queue); head++ {
					cur := queue[head]
					cx := cur % shape.X
					cy := (cur / shape.X) % shape.Y
					cz := cur / (shape.X * shape.Y)

					for _, off := range faceOffsets {
						nx, ny, nz := cx+off[0], cy+off[1], cz+off[2]
						if !shape.Contains(nx, ny, nz) {
							continue
						}
						ni := shape.Index(nx, ny, nz)
						if grid.Data[ni] != 0 && labels[ni] == 0 {
							labels[ni] = next
							queue = append(queue, ni)
						}
					}
				}
			}
		}
	}

	return &models.LabelMap{
		Shape:         shape,
		Labels:        labels,
		NumComponents: int(next),
	}, nil
}
