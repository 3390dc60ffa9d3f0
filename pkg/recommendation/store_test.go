package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

type fakeExecutor struct {
	called  bool
	success bool
	message string
}

func (f *fakeExecutor) Execute(ctx context.Context, accountID string, params model.ActionParams) (model.ActionResult, error) {
	f.called = true
	return model.ActionResult{Success: f.success, Message: f.message, Action: params.Action}, nil
}

func sampleDetection(id string) model.Detection {
	return model.Detection{
		DetectionID:      id,
		ScenarioID:       "idle_instance",
		ResourceType:     "instance",
		ResourceID:       "i-1",
		ResourceName:     "i-1",
		AccountID:        "acc-1",
		Confidence:       95,
		Mode:             model.ModeAutoSafe,
		MonthlyCost:      14.98,
		PotentialSavings: 13.47,
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rs := store.NewMemStore()
	s := New(rs, "acc-1")

	d := sampleDetection(model.NewDetectionID("idle_instance", "i-1"))
	res, err := s.Ingest(ctx, []model.Detection{d})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Created != 1 || res.Skipped != 0 {
		t.Fatalf("first ingest = %+v, want created=1 skipped=0", res)
	}

	res, err = s.Ingest(ctx, []model.Detection{d})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Created != 0 || res.Skipped != 1 {
		t.Fatalf("second ingest = %+v, want created=0 skipped=1", res)
	}
}

func TestApproveThenExecute(t *testing.T) {
	ctx := context.Background()
	rs := store.NewMemStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(rs, "acc-1").WithClock(func() time.Time { return now })
	ex := &fakeExecutor{success: true}
	s.SetExecutor(ex)

	d := sampleDetection(model.NewDetectionID("idle_instance", "i-1"))
	if _, err := s.Ingest(ctx, []model.Detection{d}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	recs, err := s.List(ctx, model.RecommendationFilter{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("List: %v / %d recs", err, len(recs))
	}
	id := recs[0].ID

	rec, err := s.Transition(ctx, id, ActionApprove, TransitionParams{})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if rec.Status != model.StatusApproved {
		t.Fatalf("status after approve = %q, want approved", rec.Status)
	}

	rec, err = s.Transition(ctx, id, ActionExecute, TransitionParams{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.Status != model.StatusExecuted {
		t.Fatalf("status after execute = %q, want executed", rec.Status)
	}
	if !ex.called {
		t.Fatal("executor was never invoked")
	}
}

func TestExecuteFailureKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	rs := store.NewMemStore()
	s := New(rs, "acc-1")
	ex := &fakeExecutor{success: false, message: "boom"}
	s.SetExecutor(ex)

	d := sampleDetection(model.NewDetectionID("idle_instance", "i-1"))
	if _, err := s.Ingest(ctx, []model.Detection{d}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	recs, _ := s.List(ctx, model.RecommendationFilter{})
	id := recs[0].ID

	if _, err := s.Transition(ctx, id, ActionApprove, TransitionParams{}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := s.Transition(ctx, id, ActionExecute, TransitionParams{}); err == nil {
		t.Fatal("expected execute to fail")
	}

	rec, _, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != model.StatusApproved {
		t.Fatalf("status after failed execute = %q, want still approved", rec.Status)
	}
}

func TestSnoozeThenUnsnooze(t *testing.T) {
	ctx := context.Background()
	rs := store.NewMemStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(rs, "acc-1").WithClock(func() time.Time { return now })

	d := sampleDetection(model.NewDetectionID("idle_instance", "i-1"))
	if _, err := s.Ingest(ctx, []model.Detection{d}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	recs, _ := s.List(ctx, model.RecommendationFilter{})
	id := recs[0].ID

	rec, err := s.Transition(ctx, id, ActionSnooze, TransitionParams{Days: 3})
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if rec.Status != model.StatusSnoozed {
		t.Fatalf("status = %q, want snoozed", rec.Status)
	}
	wantUntil := now.AddDate(0, 0, 3)
	if rec.SnoozedUntil == nil || !rec.SnoozedUntil.Equal(wantUntil) {
		t.Fatalf("snoozed_until = %v, want %v", rec.SnoozedUntil, wantUntil)
	}

	rec, err = s.Transition(ctx, id, ActionApprove, TransitionParams{})
	if err != nil {
		t.Fatalf("unsnooze via approve: %v", err)
	}
	if rec.Status != model.StatusPending {
		t.Fatalf("status after unsnooze = %q, want pending (not approved)", rec.Status)
	}
}

func TestRejectedNeverExecutes(t *testing.T) {
	ctx := context.Background()
	rs := store.NewMemStore()
	s := New(rs, "acc-1")
	ex := &fakeExecutor{success: true}
	s.SetExecutor(ex)

	d := sampleDetection(model.NewDetectionID("idle_instance", "i-1"))
	if _, err := s.Ingest(ctx, []model.Detection{d}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	recs, _ := s.List(ctx, model.RecommendationFilter{})
	id := recs[0].ID

	if _, err := s.Transition(ctx, id, ActionReject, TransitionParams{}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := s.Transition(ctx, id, ActionExecute, TransitionParams{}); err == nil {
		t.Fatal("expected execute on a rejected recommendation to fail")
	}
	if ex.called {
		t.Fatal("executor must never fire against a rejected recommendation")
	}
}
