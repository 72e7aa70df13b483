package policy

import (
	"lesionfilter/internal/models"
	"lesionfilter/pkg/morphology"
)

// PreGate rejects a lesion that does not overlap the organ before any
// cleaning, then removes components smaller than a sphere of MinRadius.
//
//	empty? -> raw overlap? -> label -> filter -> non-empty? -> accept
type PreGate struct {
	// MinRadius is the radius, in spacing units, of the smallest kept lesion
	MinRadius float64
}

// Name implements Policy
func (p PreGate) Name() string { return NamePreGate }

// Evaluate implements Policy
func (p PreGate) Evaluate(tumor *models.VoxelGrid, organ *models.BinaryMask) (*Verdict, error) {
	if err := validateInputs(tumor, organ, p.MinRadius); err != nil {
		return nil, err
	}

	v := &Verdict{Policy: p.Name()}

	// An empty lesion has nothing to gate; report it as filtered out
	if tumor.ForegroundCount() == 0 {
		v.Mask = models.NewBinaryMask(tumor.Shape)
		v.Reason = ReasonNoSurvivors
		return v, nil
	}

	overlap, err := morphology.IntersectsGrid(tumor, organ)
	if err != nil {
		return nil, err
	}
	if !overlap {
		v.Reason = ReasonNoOverlap
		return v, nil
	}

	if err := clean(tumor, p.MinRadius, v); err != nil {
		return nil, err
	}
	if !v.Mask.Any() {
		v.Reason = ReasonNoSurvivors
		return v, nil
	}

	v.Accepted = true
	v.Reason = ReasonAccepted
	return v, nil
}
