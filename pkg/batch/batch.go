// Package batch walks a case tree, runs the configured policy on every
// lesion mask and writes the accepted masks next to their sources.
package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lesionfilter/internal/logger"
	"lesionfilter/pkg/ledger"
	"lesionfilter/pkg/nifti"
	"lesionfilter/pkg/organ"
	"lesionfilter/pkg/policy"
	"lesionfilter/pkg/visualization"
)

const component = "batch"

var (
	// ErrUnknownCategory is recorded for lesion files that match no organ
	ErrUnknownCategory = errors.New("unknown organ")

	// ErrOrganMissing is recorded when the organ mask is not next to the lesion
	ErrOrganMissing = errors.New("organ file not found")
)

// Status is the outcome of one case
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Params holds the batch configuration
type Params struct {
	// BaseDir is the root of the case tree
	BaseDir string

	// MinRadius is the radius in mm of the smallest lesion kept
	MinRadius float64

	// Policy is the configured policy name, recorded with the run
	Policy string

	// OutputSuffix replaces ".nii.gz" in the name of accepted lesion files
	OutputSuffix string

	// StaleSuffixes are removed from the tree before processing
	StaleSuffixes []string

	// DryRun evaluates every case without writing masks
	DryRun bool

	// PreviewDir receives overlay PNGs of accepted cases when set
	PreviewDir string
}

// Recorder persists run and case outcomes. *ledger.Ledger implements it.
type Recorder interface {
	StartRun(r ledger.Run) error
	RecordCase(c ledger.Case) error
	FinishRun(runID string, t ledger.Totals) error
}

// Result is the outcome of one lesion file
type Result struct {
	// ID is the lesion path relative to BaseDir
	ID         string
	TumorPath  string
	OrganPath  string
	OutputPath string
	Category   organ.Category
	Status     Status

	// Reason is the verdict reason for accepted and rejected cases
	Reason policy.Reason

	// Err is set for failed cases
	Err error

	// Verdict is nil when the case failed before evaluation
	Verdict *policy.Verdict
}

// Report summarizes a batch run
type Report struct {
	RunID   string
	Policy  string
	Removed []string
	Results []Result

	Accepted int
	Rejected int
	Failed   int
}

// RetainedVolumes collects the component volumes of every accepted case
func (r *Report) RetainedVolumes() []float64 {
	var volumes []float64
	for _, res := range r.Results {
		if res.Status == StatusAccepted && res.Verdict != nil {
			volumes = append(volumes, res.Verdict.ComponentVolumes...)
		}
	}
	return volumes
}

func (r *Report) add(res Result) {
	switch res.Status {
	case StatusAccepted:
		r.Accepted++
	case StatusRejected:
		r.Rejected++
	default:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// Option configures a Processor
type Option func(*Processor)

// WithRecorder records the run and every case with rec
func WithRecorder(rec Recorder) Option {
	return func(p *Processor) {
		p.recorder = rec
	}
}

// Processor runs one policy over a case tree
type Processor struct {
	params   Params
	policy   policy.Policy
	logger   logger.Logger
	recorder Recorder
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(params Params, p policy.Policy, log logger.Logger, opts ...Option) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	if params.OutputSuffix == "" {
		params.OutputSuffix = "_new.nii.gz"
	}
	if params.Policy == "" && p != nil {
		params.Policy = p.Name()
	}
	proc := &Processor{
		params: params,
		policy: p,
		logger: log,
	}
	for _, opt := range opts {
		opt(proc)
	}
	return proc
}

// Process runs the complete batch. Per-case failures are recorded in the
// report; an error is returned only when the tree itself cannot be processed.
func (p *Processor) Process() (*Report, error) {
	if p.policy == nil {
		return nil, fmt.Errorf("batch: no policy configured")
	}
	info, err := os.Stat(p.params.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", p.params.BaseDir)
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Policy: p.policy.Name(),
	}

	// Step 1: Remove outputs of previous runs
	report.Removed, err = RemoveStaleOutputs(p.params.BaseDir, p.params.StaleSuffixes, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale outputs: %w", err)
	}

	// Step 2: Collect lesion files before anything new is written
	tumors, err := p.collectTumors()
	if err != nil {
		return nil, fmt.Errorf("failed to scan base directory: %w", err)
	}
	p.logger.Info(component, "Starting run", map[string]interface{}{
		"run_id": report.RunID,
		"policy": report.Policy,
		"cases":  len(tumors),
	})

	if p.recorder != nil {
		err := p.recorder.StartRun(ledger.Run{
			ID:        report.RunID,
			Policy:    report.Policy,
			MinRadius: p.params.MinRadius,
			BaseDir:   p.params.BaseDir,
		})
		if err != nil {
			return nil, err
		}
	}

	// Step 3: Evaluate every case
	for _, path := range tumors {
		res := p.processCase(path)
		report.add(res)
		p.record(report.RunID, res)
	}

	if p.recorder != nil {
		totals := ledger.Totals{Accepted: report.Accepted, Rejected: report.Rejected, Failed: report.Failed}
		if err := p.recorder.FinishRun(report.RunID, totals); err != nil {
			p.logger.Error(component, err, map[string]interface{}{"run_id": report.RunID})
		}
	}

	p.logger.Info(component, "Run finished", map[string]interface{}{
		"run_id":   report.RunID,
		"accepted": report.Accepted,
		"rejected": report.Rejected,
		"failed":   report.Failed,
	})
	return report, nil
}

// collectTumors lists every lesion file under BaseDir in lexical order
func (p *Processor) collectTumors() ([]string, error) {
	var tumors []string
	err := filepath.WalkDir(p.params.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && organ.IsTumorFile(d.Name()) {
			tumors = append(tumors, path)
		}
		return nil
	})
	return tumors, err
}

// processCase evaluates one lesion file. It never returns an error; failures
// are carried in the result.
func (p *Processor) processCase(tumorPath string) Result {
	res := Result{
		ID:        p.caseID(tumorPath),
		TumorPath: tumorPath,
		Category:  organ.Classify(tumorPath),
	}
	fields := map[string]interface{}{"case": res.ID, "organ": res.Category.String()}

	if res.Category == organ.Unknown {
		return p.fail(res, fmt.Errorf("%w for file: %s", ErrUnknownCategory, filepath.Base(tumorPath)), fields)
	}

	res.OrganPath = filepath.Join(filepath.Dir(tumorPath), res.Category.OrganFile())
	if _, err := os.Stat(res.OrganPath); err != nil {
		return p.fail(res, fmt.Errorf("%w for: %s", ErrOrganMissing, tumorPath), fields)
	}

	organImg, err := nifti.Read(res.OrganPath)
	if err != nil {
		return p.fail(res, fmt.Errorf("failed to load organ mask: %w", err), fields)
	}
	tumorImg, err := nifti.Read(tumorPath)
	if err != nil {
		return p.fail(res, fmt.Errorf("failed to load lesion mask: %w", err), fields)
	}

	verdict, err := p.policy.Evaluate(tumorImg.Grid, organImg.Grid.Mask())
	if err != nil {
		return p.fail(res, fmt.Errorf("error processing %s: %w", tumorPath, err), fields)
	}
	res.Verdict = verdict
	res.Reason = verdict.Reason
	fields["components"] = verdict.NumComponents
	fields["retained"] = verdict.RetainedComponents

	if !verdict.Accepted {
		res.Status = StatusRejected
		switch verdict.Reason {
		case policy.ReasonNoSurvivors:
			p.logger.Info(component, "No mask found", fields)
		default:
			p.logger.Info(component, "No intersection found", fields)
		}
		return res
	}

	res.Status = StatusAccepted
	if p.params.DryRun {
		p.logger.Info(component, "Accepted (dry run, nothing written)", fields)
	} else {
		out := OutputPath(tumorPath, p.params.OutputSuffix)
		if err := nifti.WriteMask(out, tumorImg.Header, verdict.Mask); err != nil {
			return p.fail(res, fmt.Errorf("failed to save %s: %w", out, err), fields)
		}
		res.OutputPath = out
		fields["output"] = out
		p.logger.Info(component, "Processed and saved", fields)
	}

	if p.params.PreviewDir != "" {
		if err := p.savePreview(res, verdict, organImg); err != nil {
			p.logger.Warning(component, fmt.Sprintf("Failed to save preview: %v", err), fields)
		}
	}
	return res
}

func (p *Processor) fail(res Result, err error, fields map[string]interface{}) Result {
	res.Status = StatusFailed
	res.Err = err
	p.logger.Error(component, err, fields)
	return res
}

func (p *Processor) savePreview(res Result, verdict *policy.Verdict, organImg *nifti.Image) error {
	viewer, err := visualization.NewViewer(verdict.Mask, organImg.Grid.Mask())
	if err != nil {
		return err
	}
	name := strings.ReplaceAll(strings.TrimSuffix(res.ID, ".nii.gz"), string(filepath.Separator), "_") + ".png"
	return viewer.SavePreview(filepath.Join(p.params.PreviewDir, name))
}

// record forwards a result to the recorder; failures are logged only
func (p *Processor) record(runID string, res Result) {
	if p.recorder == nil {
		return
	}
	c := ledger.Case{
		RunID:      runID,
		CaseID:     res.ID,
		Category:   res.Category.String(),
		Status:     string(res.Status),
		TumorPath:  res.TumorPath,
		OrganPath:  res.OrganPath,
		OutputPath: res.OutputPath,
	}
	if res.Err != nil {
		c.Error = res.Err.Error()
	}
	if res.Verdict != nil {
		c.Reason = res.Verdict.Reason.String()
		c.Components = res.Verdict.NumComponents
		c.RetainedComponents = res.Verdict.RetainedComponents
		c.RetainedVoxels = res.Verdict.RetainedVoxels
	}
	if err := p.recorder.RecordCase(c); err != nil {
		p.logger.Error(component, err, map[string]interface{}{"case": res.ID})
	}
}

func (p *Processor) caseID(path string) string {
	rel, err := filepath.Rel(p.params.BaseDir, path)
	if err != nil {
		return path
	}
	return rel
}

// OutputPath returns the file an accepted lesion mask is written to:
// the ".nii.gz" extension of tumorPath is replaced by suffix.
func OutputPath(tumorPath, suffix string) string {
	return strings.TrimSuffix(tumorPath, ".nii.gz") + suffix
}
