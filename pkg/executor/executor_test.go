package executor

import (
	"context"
	"testing"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

type fakeCache struct{ invalidated bool }

func (f *fakeCache) InvalidateCache() { f.invalidated = true }

type fakeAudit struct{ entries []model.AuditEntry }

func (f *fakeAudit) Append(ctx context.Context, accountID string, entry model.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func seedInstance(t *testing.T, st store.ResourceStore, ctx context.Context) model.Instance {
	t.Helper()
	inst := model.Instance{
		Header:       model.Header{ID: "i-1", AccountID: "acc-1"},
		InstanceID:   "i-1",
		InstanceType: "t3.small",
		State:        model.InstanceStateRunning,
		HourlyCost:   0.0208,
	}
	row, err := store.Encode(inst)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := st.Insert(ctx, "acc-1", store.TableInstances, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return inst
}

func TestExecuteStopInstanceAppendsAuditAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)

	cache := &fakeCache{}
	audit := &fakeAudit{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ex := New(st, cache, audit).WithClock(func() time.Time { return now })

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "stop_instance",
		ResourceType: "instance",
		ResourceID:   "i-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if !cache.invalidated {
		t.Error("cache was not invalidated on success")
	}
	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	if !audit.entries[0].Success {
		t.Error("audit entry should record success")
	}

	row, found, err := st.SelectByKey(ctx, "acc-1", store.TableInstances, "id", "i-1")
	if err != nil || !found {
		t.Fatalf("SelectByKey: %v found=%v", err, found)
	}
	if row["state"] != model.InstanceStateStopped {
		t.Errorf("state = %v, want stopped", row["state"])
	}
}

func TestExecuteByNaturalKeyFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)

	ex := New(st, nil, nil)
	// ResourceID here is the instance's natural key (instanceId), not the
	// store's primary key "id" — both happen to be "i-1" in this fixture,
	// so use a distinct resource to actually exercise the fallback.
	row, _ := store.Encode(model.Instance{
		Header:       model.Header{ID: "row-2", AccountID: "acc-1"},
		InstanceID:   "i-2",
		InstanceType: "t3.small",
		State:        model.InstanceStateRunning,
	})
	if _, err := st.Insert(ctx, "acc-1", store.TableInstances, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "stop_instance",
		ResourceType: "instance",
		ResourceID:   "i-2",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success via natural-key fallback", result)
	}
}

func TestExecuteUnknownActionFailsButStillAudits(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)
	audit := &fakeAudit{}
	ex := New(st, nil, audit)

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "reboot_the_mainframe",
		ResourceType: "instance",
		ResourceID:   "i-1",
	})
	if err != nil {
		t.Fatalf("Execute should report business failures via ActionResult, not error: %v", err)
	}
	if result.Success {
		t.Fatal("unknown action should fail")
	}
	if len(audit.entries) != 1 || audit.entries[0].Success {
		t.Fatalf("expected one failed audit entry, got %+v", audit.entries)
	}
}

func TestRightsizeInstanceMissingRecommendationFails(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)
	ex := New(st, nil, nil)

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "rightsize_instance",
		ResourceType: "instance",
		ResourceID:   "i-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatal("rightsize_instance with no RecommendedInstanceType should fail")
	}
}

func TestRightsizeInstanceAppliesRecommendation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)
	ex := New(st, nil, nil)

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "rightsize_instance",
		ResourceType: "instance",
		ResourceID:   "i-1",
		Details:      model.Details{RecommendedInstanceType: "t3.micro"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.PreviousState["instanceType"] != "t3.small" {
		t.Errorf("previous_state.instanceType = %v, want t3.small", result.PreviousState["instanceType"])
	}
	if result.NewState["instanceType"] != "t3.micro" {
		t.Errorf("new_state.instanceType = %v, want t3.micro", result.NewState["instanceType"])
	}
}

func TestRightsizeInstanceRoundTripRestoresPreviousState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	seedInstance(t, st, ctx)
	ex := New(st, nil, nil)

	first, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "rightsize_instance",
		ResourceType: "instance",
		ResourceID:   "i-1",
		Details:      model.Details{RecommendedInstanceType: "t3.micro"},
	})
	if err != nil || !first.Success {
		t.Fatalf("first Execute: result=%+v err=%v", first, err)
	}

	reverted, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "rightsize_instance",
		ResourceType: "instance",
		ResourceID:   "i-1",
		Details:      model.Details{RecommendedInstanceType: first.PreviousState["instanceType"].(string)},
	})
	if err != nil || !reverted.Success {
		t.Fatalf("reverting Execute: result=%+v err=%v", reverted, err)
	}

	if reverted.NewState["instanceType"] != "t3.small" {
		t.Errorf("reverted row instanceType = %v, want t3.small (the pre-first-action value)", reverted.NewState["instanceType"])
	}
}

func TestDeleteVolumeSoftDeletesRow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	row, _ := store.Encode(model.Volume{
		Header:     model.Header{ID: "vol-1", AccountID: "acc-1"},
		VolumeID:   "vol-1",
		VolumeType: model.VolumeTypeGP2,
		SizeGiB:    100,
		State:      model.VolumeStateAvailable,
	})
	if _, err := st.Insert(ctx, "acc-1", store.TableVolumes, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ex := New(st, nil, nil)
	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "delete_volume",
		ResourceType: "volume",
		ResourceID:   "vol-1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	row, found, err := st.SelectByKey(ctx, "acc-1", store.TableVolumes, "id", "vol-1")
	if err != nil {
		t.Fatalf("SelectByKey: %v", err)
	}
	if !found {
		t.Fatal("volume row should still exist after a soft delete")
	}
	if row["state"] != model.VolumeStateDeleted {
		t.Errorf("state = %v, want %v", row["state"], model.VolumeStateDeleted)
	}
}

func TestResourceNotFoundStillAudits(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	audit := &fakeAudit{}
	ex := New(st, nil, audit)

	result, err := ex.Execute(ctx, "acc-1", model.ActionParams{
		Action:       "stop_instance",
		ResourceType: "instance",
		ResourceID:   "does-not-exist",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for missing resource")
	}
	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1 even for not-found", len(audit.entries))
	}
}
