package morphology

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lesionfilter/internal/models"
)

// naiveDilate visits all 27 neighbors of every voxel
func naiveDilate(m *models.BinaryMask) *models.BinaryMask {
	s := m.Shape
	out := models.NewBinaryMask(s)
	for z := 0; z < s.Z; z++ {
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				for dz := -1; dz <= 1; dz++ {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							nx, ny, nz := x+dx, y+dy, z+dz
							if s.Contains(nx, ny, nz) && m.At(nx, ny, nz) {
								out.Set(x, y, z, true)
							}
						}
					}
				}
			}
		}
	}
	return out
}

// TestDilateSingleVoxel verifies a center voxel grows into a 3x3x3 cube
func TestDilateSingleVoxel(t *testing.T) {
	m := models.NewBinaryMask(models.Shape{X: 5, Y: 5, Z: 5})
	m.Set(2, 2, 2, true)

	out, err := Dilate(m)
	if err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}
	if out.Count() != 27 {
		t.Errorf("expected 27 voxels, got %d", out.Count())
	}
	if !out.At(1, 1, 1) || !out.At(3, 3, 3) {
		t.Error("corner diagonals should be set")
	}
	if out.At(0, 2, 2) || out.At(4, 4, 4) {
		t.Error("dilation should grow by exactly one voxel")
	}
}

// TestDilateClipsAtBorder verifies voxels outside the grid are ignored
func TestDilateClipsAtBorder(t *testing.T) {
	m := models.NewBinaryMask(models.Shape{X: 4, Y: 4, Z: 4})
	m.Set(0, 0, 0, true)

	out, err := Dilate(m)
	if err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}
	if out.Count() != 8 {
		t.Errorf("expected 8 voxels for a corner seed, got %d", out.Count())
	}
}

// TestDilateMatchesNaive compares the separable passes with the direct
// 27-neighbor definition and checks monotonicity.
func TestDilateMatchesNaive(t *testing.T) {
	for seed := uint64(1); seed <= 6; seed++ {
		m := randomGrid(seed, 7, 6, 5, 0.08).Mask()
		before := m.Clone()

		out, err := Dilate(m)
		if err != nil {
			t.Fatalf("seed %d: Dilate failed: %v", seed, err)
		}

		if diff := cmp.Diff(naiveDilate(m).Data, out.Data); diff != "" {
			t.Errorf("seed %d: dilation mismatch (-naive +got):\n%s", seed, diff)
		}
		if !out.Contains(m) {
			t.Errorf("seed %d: dilated mask is not a superset of the input", seed)
		}
		if diff := cmp.Diff(before.Data, m.Data); diff != "" {
			t.Errorf("seed %d: input mask was modified", seed)
		}
	}
}

func TestDilateEmptyAndFull(t *testing.T) {
	shape := models.Shape{X: 3, Y: 3, Z: 3}

	empty, err := Dilate(models.NewBinaryMask(shape))
	if err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}
	if empty.Any() {
		t.Error("dilating an empty mask should stay empty")
	}

	full := models.NewBinaryMask(shape)
	for i := range full.Data {
		full.Data[i] = true
	}
	out, err := Dilate(full)
	if err != nil {
		t.Fatalf("Dilate failed: %v", err)
	}
	if out.Count() != shape.Len() {
		t.Errorf("expected full mask, got %d voxels", out.Count())
	}
}

func TestDilateInvalidMask(t *testing.T) {
	m := &models.BinaryMask{Shape: models.Shape{X: 2, Y: 2, Z: 2}, Data: make([]bool, 3)}
	if _, err := Dilate(m); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
