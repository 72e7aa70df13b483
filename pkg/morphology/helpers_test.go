package morphology

import (
	"math/rand/v2"

	"lesionfilter/internal/models"
)

var unitSpacing = models.Spacing{X: 1, Y: 1, Z: 1}

// newGrid returns an all-background grid with unit spacing
func newGrid(x, y, z int) *models.VoxelGrid {
	return models.NewVoxelGrid(models.Shape{X: x, Y: y, Z: z}, unitSpacing)
}

// fillBox sets every voxel in [x0,x1)x[y0,y1)x[z0,z1) to v
func fillBox(g *models.VoxelGrid, x0, y0, z0, x1, y1, z1 int, v float64) {
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				g.Set(x, y, z, v)
			}
		}
	}
}

// randomGrid returns a grid where roughly density of the voxels are nonzero
func randomGrid(seed uint64, x, y, z int, density float64) *models.VoxelGrid {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	g := newGrid(x, y, z)
	for i := range g.Data {
		if r.Float64() < density {
			g.Data[i] = 1 + r.Float64()
		}
	}
	return g
}
