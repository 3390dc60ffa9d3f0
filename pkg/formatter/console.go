// Package formatter renders recommendation and detection results for
// humans: a colorized tabwriter console report and a PDF export,
// generalized from the teacher's EC2/S3/RDS-only formatter/pdf pair to
// all eleven resource kinds (§4.12).
package formatter

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
)

// ANSI console colors, matching the teacher's formatter.go palette.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorGrey   = "\033[90m"
)

func colorize(s, color string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + ColorReset
}

func impactColor(level string) string {
	switch level {
	case model.ImpactHigh:
		return ColorRed
	case model.ImpactMedium:
		return ColorYellow
	default:
		return ColorGreen
	}
}

// FormatRecommendationReport prints a table of recommendations plus a
// savings summary, the recommendation-centric analogue of the
// teacher's FormatAnalysisReport.
func FormatRecommendationReport(w io.Writer, recs []model.Recommendation, summary model.RecommendationSummary, colorized bool) {
	fmt.Fprintf(w, "%s\n", colorize("cloudtrim recommendations", ColorBold, colorized))
	fmt.Fprintf(w, "Generated: %s\n\n", time.Now().Format(time.RFC1123))

	fmt.Fprintf(w, "%s\n", colorize("Summary", ColorBold, colorized))
	fmt.Fprintf(w, "  Total potential savings: $%.2f/mo\n", summary.TotalPotentialSavings)
	fmt.Fprintf(w, "  Pending savings:         $%.2f/mo\n", summary.PendingSavings)
	for _, status := range []string{model.StatusPending, model.StatusApproved, model.StatusScheduled, model.StatusExecuted, model.StatusSnoozed, model.StatusRejected} {
		if n := summary.CountByStatus[status]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", status, n)
		}
	}
	fmt.Fprintln(w)

	sorted := make([]model.Recommendation, len(recs))
	copy(sorted, recs)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := model.ImpactRank(sorted[i].ImpactLevel), model.ImpactRank(sorted[j].ImpactLevel)
		if ri != rj {
			return ri > rj
		}
		return sorted[i].PotentialSavings > sorted[j].PotentialSavings
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMPACT\tRESOURCE\tTYPE\tSTATUS\tCONFIDENCE\tSAVINGS/MO\tTITLE")
	for _, r := range sorted {
		impact := colorize(r.ImpactLevel, impactColor(r.ImpactLevel), colorized)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t$%.2f\t%s\n",
			impact, r.ResourceName, r.ResourceType, r.Status, r.Confidence, r.PotentialSavings, r.Title)
	}
	tw.Flush()

	if len(recs) == 0 {
		fmt.Fprintln(w, colorize("no waste detected", ColorGreen, colorized))
	}
}

// FormatDetectionReport prints a detection pass's summary and
// resource-type breakdown.
func FormatDetectionReport(w io.Writer, result model.DetectionResult, colorized bool) {
	fmt.Fprintf(w, "%s\n", colorize("cloudtrim detection", ColorBold, colorized))
	fmt.Fprintf(w, "Generated: %s\n\n", result.Timestamp.Format(time.RFC1123))

	fmt.Fprintf(w, "  Detections found:        %d\n", len(result.Detections))
	fmt.Fprintf(w, "  Total monthly cost:      $%.2f\n", result.Summary.TotalMonthlyCost)
	fmt.Fprintf(w, "  Total potential savings: $%.2f/mo\n", result.Summary.TotalPotentialSavings)
	fmt.Fprintf(w, "  Auto-optimizable:        $%.2f/mo\n\n", result.Summary.AutoOptimizableSavings)

	types := make([]string, 0, len(result.Summary.CountByResourceType))
	for t := range result.Summary.CountByResourceType {
		types = append(types, t)
	}
	sort.Strings(types)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE TYPE\tFLAGGED")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, result.Summary.CountByResourceType[t])
	}
	tw.Flush()
}

// FormatAuditLog prints recent audit entries as a table.
func FormatAuditLog(w io.Writer, entries []model.AuditEntry, colorized bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tRESOURCE\tSUCCESS\tBY")
	for _, e := range entries {
		success := colorize("yes", ColorGreen, colorized)
		if !e.Success {
			success = colorize("no", ColorRed, colorized)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ExecutedAt.Format(time.RFC3339), e.Action, e.ResourceID, success, e.ExecutedBy)
	}
	tw.Flush()
}
