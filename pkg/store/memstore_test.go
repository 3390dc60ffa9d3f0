package store

import (
	"context"
	"testing"
)

func TestMemStoreInsertSelect(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	row := Row{"id": "vol-1", "state": "available", "size_gib": 100}
	if _, err := s.Insert(ctx, "acc-1", TableVolumes, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	all, err := s.SelectAll(ctx, "acc-1", TableVolumes)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("SelectAll returned %d rows, want 1", len(all))
	}

	got, found, err := s.SelectByKey(ctx, "acc-1", TableVolumes, "id", "vol-1")
	if err != nil || !found {
		t.Fatalf("SelectByKey: found=%v err=%v", found, err)
	}
	if got["state"] != "available" {
		t.Errorf("state = %v, want available", got["state"])
	}
}

func TestMemStoreUpdateNotFound(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	_, err := s.Update(ctx, "acc-1", TableVolumes, "id", "nope", Row{"state": "deleted"})
	if err == nil {
		t.Fatal("expected error updating missing row")
	}
}

func TestMemStoreUpsertIgnoresDuplicates(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	row := Row{"id": "m1", "resource_id": "i-1", "date": "2026-01-01", "cost": 1.0}
	if err := s.Upsert(ctx, "acc-1", TableDailyMetrics, []Row{row}, []string{"resource_id", "date"}, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	dup := Row{"id": "m2", "resource_id": "i-1", "date": "2026-01-01", "cost": 999.0}
	if err := s.Upsert(ctx, "acc-1", TableDailyMetrics, []Row{dup}, []string{"resource_id", "date"}, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	all, err := s.SelectAll(ctx, "acc-1", TableDailyMetrics)
	if err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("SelectAll returned %d rows, want 1 (duplicate should be ignored)", len(all))
	}
	if all[0]["cost"] != 1.0 {
		t.Errorf("cost = %v, want original 1.0", all[0]["cost"])
	}
}

func TestMemStoreExecutionMode(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	mode, err := s.GetMode(ctx, "acc-1")
	if err != nil {
		t.Fatalf("GetMode: %v", err)
	}
	if mode != "manual" {
		t.Errorf("default mode = %q, want manual", mode)
	}

	if err := s.SetMode(ctx, "acc-1", "automated"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	mode, err = s.GetMode(ctx, "acc-1")
	if err != nil {
		t.Fatalf("GetMode: %v", err)
	}
	if mode != "automated" {
		t.Errorf("mode = %q, want automated", mode)
	}
}
