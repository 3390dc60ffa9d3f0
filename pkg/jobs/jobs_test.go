package jobs

import (
	"testing"

	"github.com/cloudtrim/engine/pkg/model"
)

func TestIsDone(t *testing.T) {
	cases := []struct {
		name string
		job  model.Job
		want bool
	}{
		{"no items yet", model.Job{TotalItems: 3, CompletedItems: 0, FailedItems: 0}, false},
		{"partially done", model.Job{TotalItems: 3, CompletedItems: 1, FailedItems: 0}, false},
		{"all completed", model.Job{TotalItems: 3, CompletedItems: 3, FailedItems: 0}, true},
		{"mixed completed and failed", model.Job{TotalItems: 3, CompletedItems: 1, FailedItems: 2}, true},
		{"all failed", model.Job{TotalItems: 3, CompletedItems: 0, FailedItems: 3}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsDone(c.job); got != c.want {
				t.Errorf("IsDone(%+v) = %v, want %v", c.job, got, c.want)
			}
		})
	}
}
