package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cloudtrim/engine/pkg/model"
)

func TestFormatRecommendationReportListsEachResource(t *testing.T) {
	recs := []model.Recommendation{
		{ResourceName: "i-low", ResourceType: "instance", ImpactLevel: model.ImpactLow, Status: model.StatusPending, Title: "Idle instance", PotentialSavings: 5},
		{ResourceName: "i-high", ResourceType: "instance", ImpactLevel: model.ImpactHigh, Status: model.StatusPending, Title: "Orphaned EIP", PotentialSavings: 50},
	}
	summary := model.RecommendationSummary{
		CountByStatus:         map[string]int{model.StatusPending: 2},
		TotalPotentialSavings: 55,
		PendingSavings:        55,
	}

	var buf bytes.Buffer
	FormatRecommendationReport(&buf, recs, summary, false)
	out := buf.String()

	if !strings.Contains(out, "i-low") || !strings.Contains(out, "i-high") {
		t.Fatalf("expected both resources in report, got:\n%s", out)
	}
	if !strings.Contains(out, "$55.00") {
		t.Errorf("expected total savings in report, got:\n%s", out)
	}
}

func TestFormatRecommendationReportEmptyReportsNoWaste(t *testing.T) {
	var buf bytes.Buffer
	FormatRecommendationReport(&buf, nil, model.RecommendationSummary{}, false)
	if !strings.Contains(buf.String(), "no waste detected") {
		t.Errorf("expected no-waste message for empty report, got:\n%s", buf.String())
	}
}

func TestFormatAuditLogMarksFailuresDistinctly(t *testing.T) {
	entries := []model.AuditEntry{
		{Action: "stop_instance", ResourceID: "i-1", Success: true, ExecutedBy: "operator"},
		{Action: "delete_volume", ResourceID: "vol-1", Success: false, ExecutedBy: "operator"},
	}
	var buf bytes.Buffer
	FormatAuditLog(&buf, entries, false)
	out := buf.String()
	if !strings.Contains(out, "yes") || !strings.Contains(out, "no") {
		t.Fatalf("expected both success markers in audit log, got:\n%s", out)
	}
}
