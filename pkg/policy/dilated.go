package policy

import (
	"lesionfilter/internal/models"
	"lesionfilter/pkg/morphology"
)

// DilatedGate removes components smaller than a sphere of MinRadius and then
// keeps the cleaned lesion only if it touches the organ grown by one voxel.
// The returned mask is the cleaned lesion; the dilation is used only for
// the overlap test.
//
//	label -> filter -> non-empty? -> dilate organ -> overlap? -> accept
type DilatedGate struct {
	// MinRadius is the radius, in spacing units, of the smallest kept lesion
	MinRadius float64
}

// Name implements Policy
func (p DilatedGate) Name() string { return NameDilatedGate }

// Evaluate implements Policy
func (p DilatedGate) Evaluate(tumor *models.VoxelGrid, organ *models.BinaryMask) (*Verdict, error) {
	if err := validateInputs(tumor, organ, p.MinRadius); err != nil {
		return nil, err
	}

	v := &Verdict{Policy: p.Name()}

	if err := clean(tumor, p.MinRadius, v); err != nil {
		return nil, err
	}
	if !v.Mask.Any() {
		v.Reason = ReasonNoSurvivors
		return v, nil
	}

	grown, err := morphology.Dilate(organ)
	if err != nil {
		return nil, err
	}
	overlap, err := morphology.Intersects(v.Mask, grown)
	if err != nil {
		return nil, err
	}
	if !overlap {
		v.Reason = ReasonNoDilatedOverlap
		return v, nil
	}

	v.Accepted = true
	v.Reason = ReasonAccepted
	return v, nil
}
