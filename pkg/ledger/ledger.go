// Package ledger records batch runs and per-case outcomes in SQLite so
// results of different policies can be compared after the fact.
package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema.sql creates the runs and cases tables
//
//go:embed schema.sql
var schemaSQL string

// Ledger is a SQLite-backed record of runs
type Ledger struct {
	*sql.DB
}

// Run identifies a batch run
type Run struct {
	ID        string
	Policy    string
	MinRadius float64
	BaseDir   string
}

// Case is one processed lesion file
type Case struct {
	RunID              string
	CaseID             string
	Category           string
	Status             string
	Reason             string
	Error              string
	TumorPath          string
	OrganPath          string
	OutputPath         string
	Components         int
	RetainedComponents int
	RetainedVoxels     int
}

// Totals are the per-status counts of a run
type Totals struct {
	Accepted, Rejected, Failed int
}

// Open opens (creating if needed) the ledger at path
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db}, nil
}

// StartRun inserts a run record
func (l *Ledger) StartRun(r Run) error {
	_, err := l.Exec(
		`INSERT INTO runs (run_id, policy, min_radius, base_dir) VALUES (?, ?, ?, ?)`,
		r.ID, r.Policy, r.MinRadius, r.BaseDir,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return nil
}

// RecordCase inserts one case outcome
func (l *Ledger) RecordCase(c Case) error {
	_, err := l.Exec(`
		INSERT INTO cases (run_id, case_id, category, status, reason, error,
			tumor_path, organ_path, output_path, components, retained_components, retained_voxels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.CaseID, c.Category, c.Status, c.Reason, c.Error,
		c.TumorPath, c.OrganPath, c.OutputPath, c.Components, c.RetainedComponents, c.RetainedVoxels,
	)
	if err != nil {
		return fmt.Errorf("failed to insert case %s: %w", c.CaseID, err)
	}
	return nil
}

// FinishRun stores the final counts of a run
func (l *Ledger) FinishRun(runID string, t Totals) error {
	_, err := l.Exec(`
		UPDATE runs
		SET finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'), accepted = ?, rejected = ?, failed = ?
		WHERE run_id = ?`,
		t.Accepted, t.Rejected, t.Failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// RunTotals counts the recorded cases of a run by status
func (l *Ledger) RunTotals(runID string) (Totals, error) {
	var t Totals
	rows, err := l.Query(`SELECT status, COUNT(*) FROM cases WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return t, err
		}
		switch status {
		case "accepted":
			t.Accepted = n
		case "rejected":
			t.Rejected = n
		case "failed":
			t.Failed = n
		}
	}
	return t, rows.Err()
}

// Cases returns the recorded cases of a run in insertion order
func (l *Ledger) Cases(runID string) ([]Case, error) {
	rows, err := l.Query(`
		SELECT run_id, case_id, category, status, reason, error, tumor_path, organ_path,
			output_path, components, retained_components, retained_voxels
		FROM cases WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.RunID, &c.CaseID, &c.Category, &c.Status, &c.Reason, &c.Error,
			&c.TumorPath, &c.OrganPath, &c.OutputPath, &c.Components, &c.RetainedComponents, &c.RetainedVoxels); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}
