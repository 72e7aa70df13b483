// Package policy composes the morphology operations into accept/reject
// decisions for a lesion mask given its organ mask.
//
// Two policies are provided. PreGate checks the raw lesion against the organ
// before cleaning and skips labeling entirely when they do not touch.
// DilatedGate cleans first and then checks the cleaned lesion against the
// organ grown by one voxel, which tolerates lesions that sit on the organ
// surface without overlapping it.
package policy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"lesionfilter/internal/models"
	"lesionfilter/pkg/morphology"
)

// ErrUnknownPolicy is returned by New for an unrecognized policy name
var ErrUnknownPolicy = errors.New("unknown policy")

// Policy names accepted by New
const (
	NamePreGate     = "pregate"
	NameDilatedGate = "dilated"
)

// Reason explains a verdict
type Reason int

const (
	ReasonAccepted Reason = iota
	ReasonNoOverlap
	ReasonNoSurvivors
	ReasonNoDilatedOverlap
)

func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonNoOverlap:
		return "no anatomical overlap"
	case ReasonNoSurvivors:
		return "no surviving components after size filtering"
	case ReasonNoDilatedOverlap:
		return "no overlap with (dilated) organ region"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Verdict is the outcome of evaluating one lesion/organ pair
type Verdict struct {
	// Policy is the name of the policy that produced the verdict
	Policy string

	// Accepted is true when the cleaned mask should be kept
	Accepted bool

	// Reason explains the verdict
	Reason Reason

	// Mask is the cleaned lesion mask. It is set whenever filtering ran,
	// including rejections after filtering, and nil when PreGate rejected
	// before labeling.
	Mask *models.BinaryMask

	// NumComponents is the number of connected components before filtering
	NumComponents int

	// RetainedComponents is the number of components that passed the filter
	RetainedComponents int

	// RetainedVoxels is the number of voxels set in Mask
	RetainedVoxels int

	// ComponentVolumes lists the physical volumes of retained components
	ComponentVolumes []float64
}

// Policy decides whether a lesion mask is kept.
// Implementations hold no mutable state and may be shared between goroutines.
type Policy interface {
	// Name returns the policy's configuration name
	Name() string

	// Evaluate cleans the tumor grid and decides whether to keep it.
	// It returns models.ErrInvalidInput for malformed inputs and otherwise
	// always returns a verdict.
	Evaluate(tumor *models.VoxelGrid, organ *models.BinaryMask) (*Verdict, error)
}

// New returns the policy registered under name. Besides the canonical names
// the short forms "p1" and "p2" are accepted.
func New(name string, minRadius float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NamePreGate, "p1":
		return PreGate{MinRadius: minRadius}, nil
	case NameDilatedGate, "p2":
		return DilatedGate{MinRadius: minRadius}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Names lists the canonical policy names
func Names() []string {
	return []string{NamePreGate, NameDilatedGate}
}

// Compare evaluates every policy on the same input so their verdicts can be
// inspected side by side. It stops at the first input error.
func Compare(tumor *models.VoxelGrid, organ *models.BinaryMask, policies ...Policy) ([]*Verdict, error) {
	verdicts := make([]*Verdict, 0, len(policies))
	for _, p := range policies {
		v, err := p.Evaluate(tumor, organ)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", p.Name(), err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// validateInputs runs every input check up front so that no policy step
// starts on data that a later step would reject.
func validateInputs(tumor *models.VoxelGrid, organ *models.BinaryMask, minRadius float64) error {
	if err := tumor.Validate(); err != nil {
		return fmt.Errorf("tumor: %w", err)
	}
	if err := tumor.Spacing.Validate(); err != nil {
		return fmt.Errorf("tumor: %w", err)
	}
	if err := organ.Validate(); err != nil {
		return fmt.Errorf("organ: %w", err)
	}
	if err := models.SameShape(tumor.Shape, organ.Shape); err != nil {
		return err
	}
	if !(minRadius > 0) || math.IsInf(minRadius, 0) {
		return fmt.Errorf("%w: min radius %g must be positive", models.ErrInvalidInput, minRadius)
	}
	return nil
}

// clean labels and filters the tumor grid and fills the component counts
// of the verdict.
func clean(tumor *models.VoxelGrid, minRadius float64, v *Verdict) error {
	labels, err := morphology.Label(tumor)
	if err != nil {
		return err
	}
	volumes, err := morphology.ComponentVolumes(labels, tumor.Spacing)
	if err != nil {
		return err
	}
	mask, err := morphology.FilterByVolume(labels, tumor.Spacing, minRadius)
	if err != nil {
		return err
	}

	v.Mask = mask
	v.NumComponents = labels.NumComponents
	v.ComponentVolumes = morphology.RetainedVolumes(volumes, minRadius)
	v.RetainedComponents = len(v.ComponentVolumes)
	v.RetainedVoxels = mask.Count()
	return nil
}
