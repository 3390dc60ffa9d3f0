package pricing

import "testing"

func TestInstanceMonthlyCost(t *testing.T) {
	// A float64 variable, so the product is rounded at run time the same
	// way InstanceMonthlyCost rounds it (a constant expression would be
	// exact and differ in the last bit).
	t3SmallHourly := 0.0208
	cases := []struct {
		name         string
		instanceType string
		want         float64
	}{
		{"known t3.small", "t3.small", t3SmallHourly * HoursPerMonth},
		{"unknown type falls back", "z9.mystery", fallbackInstanceHourly * HoursPerMonth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InstanceMonthlyCost(tc.instanceType)
			if got != tc.want {
				t.Errorf("InstanceMonthlyCost(%q) = %v, want %v", tc.instanceType, got, tc.want)
			}
		})
	}
}

func TestRecommendedSmallerInstance(t *testing.T) {
	cases := []struct {
		name         string
		instanceType string
		wantType     string
		wantOK       bool
	}{
		{"mid ladder", "t3.medium", "t3.small", true},
		{"at floor", "t3.nano", "", false},
		{"single-entry family at floor", "r5.large", "", false},
		{"unknown family", "z9.large", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := RecommendedSmallerInstance(tc.instanceType)
			if ok != tc.wantOK || got != tc.wantType {
				t.Errorf("RecommendedSmallerInstance(%q) = (%q, %v), want (%q, %v)", tc.instanceType, got, ok, tc.wantType, tc.wantOK)
			}
		})
	}
}

func TestDownsizeRDSClass(t *testing.T) {
	cases := []struct {
		name    string
		class   string
		want    string
		wantOK  bool
	}{
		{"mid ladder", "db.t3.large", "db.t3.medium", true},
		{"at floor", "db.t3.micro", "db.t3.micro", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DownsizeRDSClass(tc.class)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("DownsizeRDSClass(%q) = (%q, %v), want (%q, %v)", tc.class, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestVolumeMonthlyCostGp3CheaperThanGp2(t *testing.T) {
	gp2 := VolumeMonthlyCost("gp2", 500)
	gp3 := VolumeMonthlyCost("gp3", 500)
	if gp2 != 50 {
		t.Errorf("gp2 500 GiB = %v, want 50", gp2)
	}
	if gp3 != 40 {
		t.Errorf("gp3 500 GiB = %v, want 40", gp3)
	}
	if gp3 >= gp2 {
		t.Errorf("gp3 cost %v should be cheaper than gp2 cost %v", gp3, gp2)
	}
}

func TestSnapshotMonthlyCost(t *testing.T) {
	if got := SnapshotMonthlyCost(200); got != 10 {
		t.Errorf("SnapshotMonthlyCost(200) = %v, want 10", got)
	}
}

func TestUnattachedEIPMonthlyCost(t *testing.T) {
	want := 0.005 * 720.0
	if got := UnattachedEIPMonthlyCost(); got != want {
		t.Errorf("UnattachedEIPMonthlyCost() = %v, want %v", got, want)
	}
}

func TestS3TieringSavingsNonNegative(t *testing.T) {
	got := S3TieringSavings(DefaultS3TieringSizeGiB)
	if got <= 0 {
		t.Errorf("S3TieringSavings(100) = %v, want > 0", got)
	}
}

func TestLambdaMonthlyCost(t *testing.T) {
	got := LambdaMonthlyCost(1024, 1000, 1_000_000)
	rate := float64(lambdaGBSecondRate) // run-time multiply, as in LambdaMonthlyCost
	want := 1.0 * 1.0 * 1_000_000.0 * rate
	if got != want {
		t.Errorf("LambdaMonthlyCost(1024,1000,1e6) = %v, want %v", got, want)
	}
}
