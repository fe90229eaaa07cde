package pipeline

import (
	"time"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// StageResult is the outcome of one stage of a run.
type StageResult struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Success     bool          `json:"success"`
	FailedStage string        `json:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty"`
	Stats       domain.Stats  `json:"stats"`
	Stages      []StageResult `json:"stages"`
	ExportPath  string        `json:"export_path,omitempty"`
	ExportBytes int64         `json:"export_bytes,omitempty"`
	Artifacts   []string      `json:"artifacts,omitempty"`
	Published   int           `json:"published,omitempty"`
}
