// Package presenter projects an analysis snapshot into display-ready
// values. It never mutates the snapshot.
package presenter

import (
	"fmt"
	"io"

	"github.com/legacy-guard/guard-client/pkg/datamodel"
)

// Trend qualifies the current vulnerability count. It is a sign
// comparison on the latest snapshot, not a delta against a previous one.
type Trend string

const (
	TrendIncrease Trend = "increase"
	TrendDecrease Trend = "decrease"
)

// ProgressRatio returns analyzed/total in [0, 1]. An absent snapshot or
// an unknown total yields 0, never a division error.
func ProgressRatio(snapshot *datamodel.Analysis) float64 {
	if snapshot == nil || snapshot.TotalFiles == 0 {
		return 0
	}
	return float64(snapshot.AnalyzedFiles) / float64(snapshot.TotalFiles)
}

func TrendIndicator(snapshot *datamodel.Analysis) Trend {
	if snapshot != nil && snapshot.VulnerabilitiesFound > 0 {
		return TrendIncrease
	}
	return TrendDecrease
}

// Presenter renders snapshots and findings to a writer. Findings keep
// the server's order, without sorting or deduplication.
type Presenter struct {
	Out     io.Writer
	Verbose bool
}

func New(out io.Writer, verbose bool) *Presenter {
	return &Presenter{Out: out, Verbose: verbose}
}

// tierMark maps a display tier to its line marker.
func tierMark(tier datamodel.Tier) string {
	switch tier {
	case datamodel.TierCritical:
		return "!!"
	case datamodel.TierHigh:
		return "! "
	default:
		return "  "
	}
}

// Progress writes a one-line progress view of the snapshot.
func (p *Presenter) Progress(snapshot *datamodel.Analysis) (err error) {
	if snapshot == nil {
		_, err = fmt.Fprintln(p.Out, "no analysis in progress")
		return
	}
	_, err = fmt.Fprintf(p.Out, "[%s] %s: %.0f%% (%d/%d files), %d vulnerabilities (%s)\n",
		snapshot.ProjectID,
		snapshot.Status,
		ProgressRatio(snapshot)*100,
		snapshot.AnalyzedFiles,
		snapshot.TotalFiles,
		snapshot.VulnerabilitiesFound,
		TrendIndicator(snapshot),
	)
	return
}

// Findings writes the snapshot's findings list. In verbose mode each
// finding carries its description and recommendation.
func (p *Presenter) Findings(snapshot *datamodel.Analysis) (err error) {
	if snapshot == nil || len(snapshot.Results) == 0 {
		_, err = fmt.Fprintln(p.Out, "no findings")
		return
	}
	for _, finding := range snapshot.Results {
		location := finding.FilePath
		if finding.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", finding.FilePath, finding.LineNumber)
		}
		_, err = fmt.Fprintf(p.Out, "%s %-8s %s (%s)\n",
			tierMark(finding.Severity.Tier()), finding.Severity, finding.VulnerabilityType, location)
		if err != nil {
			return
		}
		if p.Verbose {
			if _, err = fmt.Fprintf(p.Out, "     %s\n     fix: %s\n", finding.Description, finding.Recommendation); err != nil {
				return
			}
		}
	}
	return
}

// Render writes the progress line, the findings and, for failed jobs,
// the server's error message.
func (p *Presenter) Render(snapshot *datamodel.Analysis) (err error) {
	if err = p.Progress(snapshot); err != nil {
		return
	}
	if snapshot == nil {
		return
	}
	if err = p.Findings(snapshot); err != nil {
		return
	}
	if snapshot.Status == datamodel.StatusFailed && snapshot.ErrorMessage != "" {
		_, err = fmt.Fprintf(p.Out, "analysis failed: %s\n", snapshot.ErrorMessage)
	}
	return
}
