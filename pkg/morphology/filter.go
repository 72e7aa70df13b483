package morphology

import (
	"fmt"
	"math"

	"lesionfilter/internal/models"
)

// MinVolume returns the volume of a sphere with the given radius.
// A component smaller than this is considered too small to be a lesion.
func MinVolume(minRadius float64) float64 {
	return 4.0 / 3.0 * math.Pi * minRadius * minRadius * minRadius
}

// ComponentVolumes returns the physical volume of every label, indexed by
// label. Index 0 holds the aggregate background volume.
func ComponentVolumes(labels *models.LabelMap, spacing models.Spacing) ([]float64, error) {
	if err := labels.Validate(); err != nil {
		return nil, err
	}
	if err := spacing.Validate(); err != nil {
		return nil, err
	}

	voxelVolume := spacing.VoxelVolume()
	counts := labels.Counts()
	volumes := make([]float64, len(counts))
	for lbl, n := range counts {
		volumes[lbl] = float64(n) * voxelVolume
	}
	return volumes, nil
}

// FilterByVolume keeps only the components whose physical volume is at
// least MinVolume(minRadius). The threshold is inclusive. Background is
// never kept, whatever its volume.
//
// The result is strictly binary. An all-false mask is a valid result
// meaning nothing survived; it is not reported as an error.
func FilterByVolume(labels *models.LabelMap, spacing models.Spacing, minRadius float64) (*models.BinaryMask, error) {
	if !(minRadius > 0) || math.IsInf(minRadius, 0) {
		return nil, fmt.Errorf("%w: min radius %g must be positive", models.ErrInvalidInput, minRadius)
	}

	volumes, err := ComponentVolumes(labels, spacing)
	if err != nil {
		return nil, err
	}

	minVolume := MinVolume(minRadius)
	keep := make([]bool, len(volumes))
	for lbl := 1; lbl < len(volumes); lbl++ {
		keep[lbl] = volumes[lbl] >= minVolume
	}

	mask := models.NewBinaryMask(labels.Shape)
	for i, lbl := range labels.Labels {
		mask.Data[i] = keep[lbl]
	}
	return mask, nil
}

// RetainedVolumes returns the volumes of the components kept by
// FilterByVolume for the same inputs, in label order.
func RetainedVolumes(volumes []float64, minRadius float64) []float64 {
	minVolume := MinVolume(minRadius)
	var kept []float64
	for lbl := 1; lbl < len(volumes); lbl++ {
		if volumes[lbl] >= minVolume {
			kept = append(kept, volumes[lbl])
		}
	}
	return kept
}
