package morphology

import (
	"errors"
	"math"
	"testing"

	"lesionfilter/internal/models"
)

func labelOrFail(t *testing.T, g *models.VoxelGrid) *models.LabelMap {
	t.Helper()
	labels, err := Label(g)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	return labels
}

func TestMinVolume(t *testing.T) {
	expected := 14.137166941154069
	if v := MinVolume(1.5); math.Abs(v-expected) > 1e-9 {
		t.Errorf("MinVolume(1.5): expected %f, got %f", expected, v)
	}
}

// TestFilterRemovesIsolatedVoxel keeps a 27-voxel cube and drops a lone voxel
func TestFilterRemovesIsolatedVoxel(t *testing.T) {
	g := newGrid(10, 10, 10)
	g.Set(0, 0, 0, 1)
	fillBox(g, 5, 5, 5, 8, 8, 8, 1)

	mask, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}

	if mask.At(0, 0, 0) {
		t.Error("isolated voxel should be removed")
	}
	if mask.Count() != 27 {
		t.Errorf("expected 27 retained voxels, got %d", mask.Count())
	}
	if !mask.At(6, 6, 6) {
		t.Error("cube center should be retained")
	}
}

// TestFilterKeepsFifteenVoxelBlob keeps a 15-voxel line (15 >= 14.137)
func TestFilterKeepsFifteenVoxelBlob(t *testing.T) {
	g := newGrid(20, 3, 3)
	fillBox(g, 2, 1, 1, 17, 2, 2, 1)

	mask, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if mask.Count() != 15 {
		t.Errorf("expected all 15 voxels retained, got %d", mask.Count())
	}
}

// TestFilterThresholdInclusive builds spacing so that an 8-voxel component
// has exactly the minimum volume; a 7-voxel component falls just below it.
func TestFilterThresholdInclusive(t *testing.T) {
	radius := 1.5
	spacing := models.Spacing{X: MinVolume(radius) / 8, Y: 1, Z: 1}

	testCases := []struct {
		voxels   int
		retained bool
	}{
		{8, true},
		{7, false},
		{9, true},
	}

	for _, tc := range testCases {
		g := models.NewVoxelGrid(models.Shape{X: 12, Y: 1, Z: 1}, spacing)
		for x := 0; x < tc.voxels; x++ {
			g.Set(x, 0, 0, 1)
		}

		mask, err := FilterByVolume(labelOrFail(t, g), spacing, radius)
		if err != nil {
			t.Fatalf("%d voxels: FilterByVolume failed: %v", tc.voxels, err)
		}
		if mask.Any() != tc.retained {
			t.Errorf("%d voxels: expected retained=%v, got %v", tc.voxels, tc.retained, mask.Any())
		}
	}
}

// TestFilterAnisotropicSpacing verifies spacing scales the volume per axis
func TestFilterAnisotropicSpacing(t *testing.T) {
	// 4 voxels of 0.5 x 0.5 x 2.5 mm = 2.5 mm³, far below 14.137 mm³;
	// with 1 x 2 x 2.5 mm voxels they total 20 mm³ and survive.
	g := newGrid(4, 1, 1)
	fillBox(g, 0, 0, 0, 4, 1, 1, 1)
	labels := labelOrFail(t, g)

	small, err := FilterByVolume(labels, models.Spacing{X: 0.5, Y: 0.5, Z: 2.5}, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if small.Any() {
		t.Error("component should be removed with fine spacing")
	}

	large, err := FilterByVolume(labels, models.Spacing{X: 1, Y: 2, Z: 2.5}, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if large.Count() != 4 {
		t.Errorf("component should be retained with coarse spacing, got %d voxels", large.Count())
	}
}

// TestFilterExcludesBackground verifies label 0 is never kept even when the
// background is by far the largest region.
func TestFilterExcludesBackground(t *testing.T) {
	g := newGrid(10, 10, 10)
	g.Set(4, 4, 4, 1)

	mask, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 0.1)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if mask.Count() != 1 || !mask.At(4, 4, 4) {
		t.Errorf("expected only the single foreground voxel, got %d voxels", mask.Count())
	}
}

func TestFilterEmptyGrid(t *testing.T) {
	mask, err := FilterByVolume(labelOrFail(t, newGrid(5, 5, 5)), unitSpacing, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if mask.Any() {
		t.Error("expected empty mask for empty grid")
	}
}

// TestFilterBinaryOutput verifies intensities are not carried through
func TestFilterBinaryOutput(t *testing.T) {
	g := newGrid(5, 5, 5)
	fillBox(g, 0, 0, 0, 3, 3, 3, 7.5)

	mask, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 1.5)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	if mask.Count() != 27 {
		t.Errorf("expected 27 voxels, got %d", mask.Count())
	}
}

// TestFilterIdempotent checks that labeling and filtering twice keeps the
// same voxel set.
func TestFilterIdempotent(t *testing.T) {
	g := randomGrid(11, 10, 10, 10, 0.45)
	first, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 1.2)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	second, err := FilterByVolume(labelOrFail(t, g), unitSpacing, 1.2)
	if err != nil {
		t.Fatalf("FilterByVolume failed: %v", err)
	}
	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("voxel %d differs between runs", i)
		}
	}
}

func TestFilterInvalidInput(t *testing.T) {
	labels := labelOrFail(t, newGrid(3, 3, 3))

	testCases := []struct {
		name    string
		spacing models.Spacing
		radius  float64
	}{
		{"zero radius", unitSpacing, 0},
		{"negative radius", unitSpacing, -1},
		{"nan radius", unitSpacing, math.NaN()},
		{"zero spacing", models.Spacing{X: 1, Y: 0, Z: 1}, 1.5},
		{"negative spacing", models.Spacing{X: 1, Y: 1, Z: -2}, 1.5},
	}

	for _, tc := range testCases {
		if _, err := FilterByVolume(labels, tc.spacing, tc.radius); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}

	badMaps := []struct {
		name   string
		labels *models.LabelMap
	}{
		{"label above count", &models.LabelMap{Shape: models.Shape{X: 2, Y: 1, Z: 1}, Labels: []int32{0, 5}, NumComponents: 1}},
		{"negative label", &models.LabelMap{Shape: models.Shape{X: 2, Y: 1, Z: 1}, Labels: []int32{-1, 1}, NumComponents: 1}},
		{"negative count", &models.LabelMap{Shape: models.Shape{X: 1, Y: 1, Z: 1}, Labels: []int32{0}, NumComponents: -1}},
		{"short labels", &models.LabelMap{Shape: models.Shape{X: 2, Y: 1, Z: 1}, Labels: []int32{0}, NumComponents: 0}},
	}

	for _, tc := range badMaps {
		if _, err := FilterByVolume(tc.labels, unitSpacing, 1.5); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput from FilterByVolume, got %v", tc.name, err)
		}
		if _, err := ComponentVolumes(tc.labels, unitSpacing); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput from ComponentVolumes, got %v", tc.name, err)
		}
	}
}

func TestComponentVolumes(t *testing.T) {
	g := newGrid(6, 1, 1)
	g.Data = []float64{1, 1, 0, 1, 0, 0}

	volumes, err := ComponentVolumes(labelOrFail(t, g), models.Spacing{X: 2, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("ComponentVolumes failed: %v", err)
	}
	expected := []float64{6, 4, 2}
	if len(volumes) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(volumes))
	}
	for i := range expected {
		if volumes[i] != expected[i] {
			t.Errorf("label %d: expected volume %f, got %f", i, expected[i], volumes[i])
		}
	}

	kept := RetainedVolumes(volumes, 0.9)
	if len(kept) != 1 || kept[0] != 4 {
		t.Errorf("expected only the 4 mm³ component retained, got %v", kept)
	}
}
