package datamodel

import (
	"log/slog"
	"os"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// Status is the server-side state of an analysis job. The token set is
// owned by the backend; unknown values are carried as-is and treated as
// non-pollable.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Pollable reports whether another status fetch should be scheduled after
// observing this status. Only running jobs are re-polled; queued jobs are
// deliberately excluded to match the backend contract.
func (s Status) Pollable() bool {
	return s == StatusRunning
}

// Terminal reports whether the job reached a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Tier buckets severities for display purposes.
type Tier string

const (
	TierCritical Tier = "critical-tier"
	TierHigh     Tier = "high-tier"
	TierDefault  Tier = "default-tier"
)

// Tier maps a severity to its display tier. Anything other than critical
// or high falls into the default tier, unrecognized values included.
func (s Severity) Tier() Tier {
	switch s {
	case SeverityCritical:
		return TierCritical
	case SeverityHigh:
		return TierHigh
	default:
		return TierDefault
	}
}

// Languages the backend knows how to analyze. An empty language is
// permitted and means "unspecified".
var Languages = []string{"cobol", "c", "cpp", "java", "fortran"}

func ValidLanguage(language string) bool {
	if language == "" {
		return true
	}
	for _, l := range Languages {
		if l == language {
			return true
		}
	}
	return false
}

// Finding is one reported vulnerability instance with location and
// remediation guidance.
type Finding struct {
	ID                string   `json:"id"`
	VulnerabilityType string   `json:"vulnerability_type"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	FilePath          string   `json:"file_path"`
	LineNumber        int      `json:"line_number,omitempty"`
	Recommendation    string   `json:"recommendation"`
}

// Analysis is the snapshot of a job as returned by a status fetch. Each
// fetch replaces the whole snapshot; the client never merges or diffs.
type Analysis struct {
	ProjectID            string    `json:"project_id"`
	ProjectName          string    `json:"project_name,omitempty"`
	Status               Status    `json:"status"`
	TotalFiles           int       `json:"total_files"`
	AnalyzedFiles        int       `json:"analyzed_files"`
	VulnerabilitiesFound int       `json:"vulnerabilities_found"`
	Results              []Finding `json:"results"`
	ErrorMessage         string    `json:"error_message,omitempty"`
}
