package drift

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

type fakeEngine struct{ invalidated int }

func (f *fakeEngine) DetectAll(ctx context.Context, refresh bool) (model.DetectionResult, error) {
	return model.DetectionResult{}, nil
}
func (f *fakeEngine) InvalidateCache() { f.invalidated++ }

type fakeExecutor struct{ calls int }

func (f *fakeExecutor) Execute(ctx context.Context, accountID string, params model.ActionParams) (model.ActionResult, error) {
	f.calls++
	return model.ActionResult{Success: true}, nil
}

func seedMetric(t *testing.T, st store.ResourceStore, ctx context.Context, accountID, date string) {
	t.Helper()
	row, _ := store.Encode(model.DailyMetric{
		ID: "m-seed", AccountID: accountID, ResourceType: "instance",
		ResourceID: "i-1", Date: date, Cost: 1,
	})
	if _, err := st.Insert(ctx, accountID, store.TableDailyMetrics, row); err != nil {
		t.Fatalf("seed metric: %v", err)
	}
}

func TestTickSkipsAccountWithNoHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	eng := &fakeEngine{}
	ex := &fakeExecutor{}
	d := New(st, st, eng, ex, "acc-1")

	result, err := d.Tick(ctx, false)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Detection.TotalDetections != 0 || eng.invalidated != 0 {
		t.Fatalf("expected a no-op tick for an account with no history, got %+v (invalidated=%d)", result, eng.invalidated)
	}
}

func TestTickAdvancesDateMonotonically(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedMetric(t, st, ctx, "acc-1", "2026-01-01")

	eng := &fakeEngine{}
	ex := &fakeExecutor{}
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	d := New(st, st, eng, ex, "acc-1").WithClock(func() time.Time { return now }).WithRand(rand.New(rand.NewSource(42)))

	if _, err := d.Tick(ctx, false); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	maxDate1 := maxDateFor(t, st, ctx, "acc-1")
	if maxDate1 <= "2026-01-01" {
		t.Fatalf("max date after first tick = %s, want > 2026-01-01", maxDate1)
	}

	if _, err := d.Tick(ctx, false); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	maxDate2 := maxDateFor(t, st, ctx, "acc-1")
	if maxDate2 < maxDate1 {
		t.Fatalf("max date regressed: %s -> %s", maxDate1, maxDate2)
	}
	if eng.invalidated != 2 {
		t.Errorf("InvalidateCache called %d times, want 2", eng.invalidated)
	}
}

func maxDateFor(t *testing.T, st store.ResourceStore, ctx context.Context, accountID string) string {
	t.Helper()
	rows, err := st.SelectAll(ctx, accountID, store.TableDailyMetrics)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	max := ""
	for _, r := range rows {
		date, _ := r["date"].(string)
		if date > max {
			max = date
		}
	}
	return max
}

func TestTickRunsAutomatedExecutionWhenModeIsAutomated(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedMetric(t, st, ctx, "acc-1", "2026-01-01")
	if err := st.SetMode(ctx, "acc-1", model.ExecutionModeAutomated); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	eng := &fakeEngineWithDetections{}
	ex := &fakeExecutor{}
	d := New(st, st, eng, ex, "acc-1").WithRand(rand.New(rand.NewSource(7)))

	result, err := d.Tick(ctx, false)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if result.Execution.Mode != model.ExecutionModeAutomated {
		t.Errorf("execution mode = %q, want automated", result.Execution.Mode)
	}
	if ex.calls != 1 {
		t.Errorf("executor calls = %d, want 1 (only the mode-2 detection)", ex.calls)
	}
}

type fakeEngineWithDetections struct{ invalidated int }

func (f *fakeEngineWithDetections) InvalidateCache() { f.invalidated++ }
func (f *fakeEngineWithDetections) DetectAll(ctx context.Context, refresh bool) (model.DetectionResult, error) {
	return model.DetectionResult{
		Detections: []model.Detection{
			{ScenarioID: "idle_instance", ResourceType: "instance", ResourceID: "i-1", Mode: model.ModeAutoSafe},
			{ScenarioID: "over_provisioned_instance", ResourceType: "instance", ResourceID: "i-2", Mode: model.ModeApprovalRequired},
		},
	}, nil
}

// TestTickExecutesEveryAutoSafeScenario guards against the automated pass
// silently skipping a mode-2 scenario for lack of an action mapping —
// it exercises the scenarios that were missing from an earlier, private
// copy of this table.
func TestTickExecutesEveryAutoSafeScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedMetric(t, st, ctx, "acc-1", "2026-01-01")
	if err := st.SetMode(ctx, "acc-1", model.ExecutionModeAutomated); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	scenarios := []string{
		"s3_no_lifecycle", "log_no_retention", "forgotten_preview",
		"over_provisioned_asg", "stale_feature_env", "multi_az_non_prod",
		"s3_no_version_expiration",
	}
	eng := &fakeEngineWithScenarios{scenarios: scenarios}
	ex := &fakeExecutor{}
	d := New(st, st, eng, ex, "acc-1").WithRand(rand.New(rand.NewSource(7)))

	result, err := d.Tick(ctx, false)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if ex.calls != len(scenarios) {
		t.Errorf("executor calls = %d, want %d (one per auto-safe scenario)", ex.calls, len(scenarios))
	}
	if result.Execution.Executed != len(scenarios) {
		t.Errorf("Execution.Executed = %d, want %d", result.Execution.Executed, len(scenarios))
	}
}

type fakeEngineWithScenarios struct{ scenarios []string }

func (f *fakeEngineWithScenarios) InvalidateCache() {}
func (f *fakeEngineWithScenarios) DetectAll(ctx context.Context, refresh bool) (model.DetectionResult, error) {
	dets := make([]model.Detection, len(f.scenarios))
	for i, s := range f.scenarios {
		dets[i] = model.Detection{ScenarioID: s, ResourceType: "instance", ResourceID: "r", Mode: model.ModeAutoSafe}
	}
	return model.DetectionResult{Detections: dets}, nil
}
