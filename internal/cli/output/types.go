package output

import (
	"time"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

// StageOutput is one stage of a build in JSON output.
type StageOutput struct {
	Stage      string `json:"stage"`
	Phase      string `json:"phase"`
	Status     string `json:"status"`
	RowsIn     int64  `json:"rows_in"`
	RowsOut    int64  `json:"rows_out"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ChecksSummary counts validation outcomes.
type ChecksSummary struct {
	Passed int                `json:"passed"`
	Failed int                `json:"failed"`
	Checks []core.CheckResult `json:"checks,omitempty"`
}

// RunOutput is a run ledger entry in JSON output.
type RunOutput struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stages      []StageOutput  `json:"stages,omitempty"`
	Checks      *ChecksSummary `json:"checks,omitempty"`
}

// BuildOutput is the JSON result of `mktwh build`.
type BuildOutput struct {
	Run        *RunOutput     `json:"run,omitempty"`
	Success    bool           `json:"success"`
	DurationMS int64          `json:"duration_ms"`
	Stages     []StageOutput  `json:"stages"`
	Checks     *ChecksSummary `json:"checks,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// SourceOutput is one registered or discovered extract in JSON output.
type SourceOutput struct {
	ID          string   `json:"id"`
	Stream      string   `json:"stream"`
	File        string   `json:"file"`
	Description string   `json:"description,omitempty"`
	Registered  bool     `json:"registered"`
	Present     bool     `json:"present"`
	Ops         []string `json:"ops,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
}

// QueryOutput is the JSON result of `mktwh query`.
type QueryOutput struct {
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
	RowCount  int                 `json:"row_count"`
	ElapsedMS int64               `json:"elapsed_ms"`
}

// AirportOutput is one airport written by `mktwh reference fetch`.
type AirportOutput struct {
	IATA         string `json:"iata_code"`
	Name         string `json:"name"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Country      string `json:"iso_country"`
}

// NewStageOutputs converts ledger stage runs.
func NewStageOutputs(stages []*core.StageRun) []StageOutput {
	out := make([]StageOutput, 0, len(stages))
	for _, s := range stages {
		out = append(out, StageOutput{
			Stage:      s.Stage,
			Phase:      string(s.Phase),
			Status:     string(s.Status),
			RowsIn:     s.RowsIn,
			RowsOut:    s.RowsOut,
			DurationMS: s.DurationMS,
			Error:      s.Error,
		})
	}
	return out
}

// NewRunOutput converts a ledger run.
func NewRunOutput(r *core.Run) *RunOutput {
	if r == nil {
		return nil
	}
	return &RunOutput{
		ID:          r.ID,
		Status:      string(r.Status),
		WindowStart: r.WindowStart.Format(core.DateLayout),
		WindowEnd:   r.WindowEnd.Format(core.DateLayout),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

// NewChecksSummary counts checks; the full list is kept only when keep is set.
func NewChecksSummary(checks []core.CheckResult, keep bool) *ChecksSummary {
	s := &ChecksSummary{}
	for _, c := range checks {
		if c.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	if keep {
		s.Checks = checks
	}
	return s
}
