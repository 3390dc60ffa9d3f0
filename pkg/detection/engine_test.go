package detection

import (
	"context"
	"testing"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func f64(v float64) *float64 { return &v }

func TestIdleInstanceWorkedExample(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewMemStore()
	ctx := context.Background()

	row, err := store.Encode(model.Instance{
		Header: model.Header{
			ID: "i-1", AccountID: "acc-1", Env: "dev", UpdatedAt: now,
		},
		InstanceID:   "i-1",
		InstanceType: "t3.small",
		State:        model.InstanceStateRunning,
		HourlyCost:   0.0208,
		AvgCPU7d:     f64(1.5),
		LaunchTime:   now.AddDate(0, 0, -10),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := st.Insert(ctx, "acc-1", store.TableInstances, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	e := New(st, "acc-1", WithClock(fixedClock(now)))
	result, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(result.Detections) != 1 {
		t.Fatalf("got %d detections, want 1: %+v", len(result.Detections), result.Detections)
	}
	d := result.Detections[0]
	if d.ScenarioID != "idle_instance" {
		t.Errorf("scenario = %q, want idle_instance", d.ScenarioID)
	}
	if d.Confidence != 95 {
		t.Errorf("confidence = %d, want 95 (80+10+5)", d.Confidence)
	}
	wantSavings := round4(0.9 * 0.0208 * 720)
	if d.PotentialSavings != wantSavings {
		t.Errorf("savings = %v, want %v", d.PotentialSavings, wantSavings)
	}
}

func TestDetectAllCacheWithinTTL(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewMemStore()
	e := New(st, "acc-1", WithClock(fixedClock(now)))
	ctx := context.Background()

	first, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	row, _ := store.Encode(model.Instance{
		Header:       model.Header{ID: "i-2", AccountID: "acc-1"},
		InstanceID:   "i-2",
		InstanceType: "t3.small",
		State:        model.InstanceStateRunning,
		HourlyCost:   0.0208,
		AvgCPU7d:     f64(1),
	})
	if _, err := st.Insert(ctx, "acc-1", store.TableInstances, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(second.Detections) != len(first.Detections) {
		t.Fatalf("cached scan should be unaffected by the new row: got %d detections, want %d", len(second.Detections), len(first.Detections))
	}

	e.InvalidateCache()
	third, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(third.Detections) == len(first.Detections) {
		t.Fatalf("after invalidation, scan should reflect the new row")
	}
}

func TestConfidenceBoundsAndSavingsMonotonicity(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewMemStore()
	ctx := context.Background()

	row, _ := store.Encode(model.ElasticIP{
		Header:   model.Header{ID: "eip-1", AccountID: "acc-1"},
		PublicIP: "1.2.3.4",
	})
	if _, err := st.Insert(ctx, "acc-1", store.TableElasticIPs, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	e := New(st, "acc-1", WithClock(fixedClock(now)))
	result, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	for _, d := range result.Detections {
		if d.Confidence < 0 || d.Confidence > 100 {
			t.Errorf("detection %s confidence out of bounds: %d", d.ScenarioID, d.Confidence)
		}
		if d.PotentialSavings > d.MonthlyCost {
			t.Errorf("detection %s savings %v exceeds monthly cost %v", d.ScenarioID, d.PotentialSavings, d.MonthlyCost)
		}
	}
}

func TestGP2VolumeUpgradeSavings(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	st := store.NewMemStore()
	ctx := context.Background()

	row, _ := store.Encode(model.Volume{
		Header:     model.Header{ID: "vol-1", AccountID: "acc-1"},
		VolumeID:   "vol-1",
		VolumeType: model.VolumeTypeGP2,
		SizeGiB:    500,
		State:      model.VolumeStateInUse,
	})
	if _, err := st.Insert(ctx, "acc-1", store.TableVolumes, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	e := New(st, "acc-1", WithClock(fixedClock(now)))
	result, err := e.DetectAll(ctx, false)
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(result.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(result.Detections))
	}
	d := result.Detections[0]
	if d.MonthlyCost != 50 {
		t.Errorf("gp2 monthly cost = %v, want 50", d.MonthlyCost)
	}
	if d.PotentialSavings != 10 {
		t.Errorf("gp2->gp3 savings = %v, want 10", d.PotentialSavings)
	}
}
