package formatter

import (
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/cloudtrim/engine/pkg/model"
)

// ExportRecommendationsToPDF renders recs as a PDF report, the
// recommendation-centric analogue of the teacher's ExportReportToPDF:
// a summary page followed by one section per recommendation, pulling
// straight from structured fields instead of regexing prose out of a
// free-form LLM analysis string.
func ExportRecommendationsToPDF(recs []model.Recommendation, summary model.RecommendationSummary, outputPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "cloudtrim recommendations")
	pdf.Ln(12)

	pdf.SetFont("Arial", "I", 10)
	pdf.Cell(40, 10, fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC1123)))
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Summary")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 8, fmt.Sprintf("Recommendations: %d", len(recs)))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Total potential savings: $%.2f/mo", summary.TotalPotentialSavings))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Pending savings: $%.2f/mo", summary.PendingSavings))
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Details")
	pdf.Ln(12)

	for i, r := range recs {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 8, fmt.Sprintf("%d. %s", i+1, r.Title))
		pdf.Ln(10)

		pdf.SetFont("Arial", "", 10)
		pdf.Cell(40, 6, fmt.Sprintf("Resource: %s (%s)", r.ResourceName, r.ResourceType))
		pdf.Ln(6)
		pdf.Cell(40, 6, fmt.Sprintf("Impact: %s  Confidence: %d%%  Status: %s", r.ImpactLevel, r.Confidence, r.Status))
		pdf.Ln(6)
		pdf.Cell(40, 6, fmt.Sprintf("Monthly cost: $%.2f  Potential savings: $%.2f", r.MonthlyCost, r.PotentialSavings))
		pdf.Ln(10)

		pdf.SetFont("Arial", "BI", 10)
		pdf.Cell(40, 8, "Description:")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(180, 5, r.Description, "", "", false)
		pdf.Ln(4)

		if r.Explanation != "" {
			pdf.SetFont("Arial", "BI", 10)
			pdf.Cell(40, 8, "Explanation:")
			pdf.Ln(8)
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(180, 5, r.Explanation, "", "", false)
		}

		pdf.Ln(10)
	}

	return pdf.OutputFileAndClose(outputPath)
}
