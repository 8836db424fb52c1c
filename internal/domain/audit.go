package domain

import "time"

// StageAudit is the append-only audit row one stage emits: counts and
// truncated canonical hashes, never raw biomarker values.
type StageAudit struct {
	RunID       string         `json:"run_id"`
	Stage       Stage          `json:"stage"`
	Counts      map[string]int `json:"counts"`
	InputHash   string         `json:"input_hash"`
	OutputHash  string         `json:"output_hash"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// LogFields returns structured logging fields for audit trails.
func (a *StageAudit) LogFields() map[string]any {
	fields := map[string]any{
		"run_id":      a.RunID,
		"stage":       string(a.Stage),
		"input_hash":  a.InputHash,
		"output_hash": a.OutputHash,
		"duration_ms": a.CompletedAt.Sub(a.StartedAt).Milliseconds(),
	}
	for k, v := range a.Counts {
		fields["count_"+k] = v
	}
	return fields
}

// RunRecord is the pipeline-level audit row persisted after the response
// is formed. Stages holds one StageAudit per executed stage in pipeline
// order.
type RunRecord struct {
	RunID        string       `json:"run_id"`
	PipelineHash string       `json:"pipeline_hash"`
	Versions     Versions     `json:"versions"`
	Stages       []StageAudit `json:"stages"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
}
