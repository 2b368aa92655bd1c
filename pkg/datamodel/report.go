package datamodel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

// Report summarizes one submission once its job settled, for export.
type Report struct {
	ProjectID            string    `json:"project_id"`
	ProjectName          string    `json:"project_name"`
	Language             string    `json:"language,omitempty"`
	Archive              string    `json:"archive,omitempty"`
	Status               Status    `json:"status"`
	TotalFiles           int       `json:"total_files,omitempty"`
	AnalyzedFiles        int       `json:"analyzed_files,omitempty"`
	VulnerabilitiesFound int       `json:"vulnerabilities_found"`
	Findings             []Finding `json:"findings,omitempty"`
	Error                string    `json:"error,omitempty"`
}

// NewReport projects the last job snapshot into an export report.
func NewReport(archive, language string, analysis *Analysis) (r Report) {
	r = Report{
		Archive:  archive,
		Language: language,
	}
	if analysis == nil {
		return
	}
	r.ProjectID = analysis.ProjectID
	r.ProjectName = analysis.ProjectName
	r.Status = analysis.Status
	r.TotalFiles = analysis.TotalFiles
	r.AnalyzedFiles = analysis.AnalyzedFiles
	r.VulnerabilitiesFound = analysis.VulnerabilitiesFound
	r.Findings = analysis.Results
	r.Error = analysis.ErrorMessage
	return
}

type ReportsWriter struct {
	dst io.WriteSeeker
}

// SubmissionContext frames a bulk export: the span of the submissions it
// covers and when it was generated.
type SubmissionContext struct {
	GeneratedAt time.Time
	Start       time.Time
	End         time.Time
}

func NewReportsWriter(dst io.WriteSeeker) *ReportsWriter {
	return &ReportsWriter{dst: dst}
}

func (rw *ReportsWriter) Write(r Report) (err error) {
	// try to seek above last "\n]"
	n, _ := rw.dst.Seek(-2, io.SeekEnd)
	out := bufio.NewWriter(rw.dst)
	if n == 0 {
		// start of file
		if _, err = out.WriteString("[\n"); err != nil {
			return
		}
	} else {
		if _, err = out.WriteString(",\n"); err != nil {
			return
		}
	}

	encoder := json.NewEncoder(out)
	err = encoder.Encode(r)
	if err != nil {
		return
	}
	if _, err = out.WriteString("]"); err != nil {
		return
	}
	if flushErr := out.Flush(); flushErr != nil {
		logger.Error("failed to flush buffer", slog.String("error", flushErr.Error()))
	}
	return
}

// GenerateReport renders an export envelope holding the reports and the
// submission span they cover.
func GenerateReport(sctx SubmissionContext, reports []Report) (r io.Reader, err error) {
	envelope := struct {
		GeneratedAt time.Time `json:"generated_at"`
		Start       time.Time `json:"start,omitzero"`
		End         time.Time `json:"end,omitzero"`
		Reports     []Report  `json:"reports"`
	}{
		GeneratedAt: sctx.GeneratedAt,
		Start:       sctx.Start,
		End:         sctx.End,
		Reports:     reports,
	}
	buffer := &bytes.Buffer{}
	out := json.NewEncoder(buffer)
	out.SetIndent("", "  ")
	err = out.Encode(envelope)
	return buffer, err
}
