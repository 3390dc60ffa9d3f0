package detection

import (
	"strings"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
)

// nonProdEnvs lists the environments rules 5, 6, 16 and 21 treat as
// non-production.
var nonProdEnvs = map[string]bool{
	"dev":         true,
	"staging":     true,
	"test":        true,
	"preview":     true,
	"development": true,
	"qa":          true,
}

func isNonProd(env string) bool {
	return nonProdEnvs[strings.ToLower(env)]
}

func isWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}

// containsAnyFold reports whether s contains any of needles, case-insensitive.
func containsAnyFold(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// nameOrTagsContainAny reports whether name, or any tag key/value, contains
// one of needles. Used by idle_ci_runner's "name or tag contains" predicate.
func nameOrTagsContainAny(name string, tags map[string]string, needles ...string) bool {
	if containsAnyFold(name, needles...) {
		return true
	}
	for k, v := range tags {
		if containsAnyFold(k, needles...) || containsAnyFold(v, needles...) {
			return true
		}
	}
	return false
}

// envOrNameContainsAny reports whether env or name contains one of needles.
// Used by forgotten_preview and stale_feature_env.
func envOrNameContainsAny(env, name string, needles ...string) bool {
	return containsAnyFold(env, needles...) || containsAnyFold(name, needles...)
}

// newDetection builds a Detection with its idempotency key already set
// and confidence clamped, centralizing the bookkeeping every rule needs.
func newDetection(scenarioID, resourceType, resourceID, resourceName string, h model.Header, confidence, mode int, monthlyCost, savings float64, now time.Time) model.Detection {
	return model.Detection{
		DetectionID:      model.NewDetectionID(scenarioID, resourceID),
		ScenarioID:       scenarioID,
		ResourceType:     resourceType,
		ResourceID:       resourceID,
		ResourceName:     resourceName,
		AccountID:        h.AccountID,
		Region:           h.Region,
		Env:              h.Env,
		Confidence:       model.ClampConfidence(confidence),
		Mode:             mode,
		MonthlyCost:      round4(monthlyCost),
		PotentialSavings: round4(savings),
		CanAutoOptimize:  mode == model.ModeAutoSafe,
		CreatedAt:        now,
	}
}

// round4 rounds half up to 4 decimal places, matching the spec's stated
// dollar precision.
func round4(v float64) float64 {
	const p = 10000.0
	return float64(int64(v*p+0.5)) / p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func bothNil(a, b *float64) bool {
	return a == nil && b == nil
}
