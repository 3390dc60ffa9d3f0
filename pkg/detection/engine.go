// Package detection implements the waste detection engine: a
// concurrent 11-table fetch followed by 24 pure scenario rules
// evaluated in-memory against the fetched snapshot (§4.2).
package detection

import (
	"context"
	"log"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithTreatMissingMetricsAsIdle sets the policy knob §9 calls for:
// whether rules 5/6 (idle_rds, idle_cache) treat "both metrics null" as
// potentially idle. Default true, preserving the source behavior.
func WithTreatMissingMetricsAsIdle(v bool) Option {
	return func(e *Engine) { e.treatMissingMetricsAsIdle = v }
}

// WithClock overrides the engine's notion of "now", for deterministic
// tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs detect_all for a single account. Each tenant gets its own
// Engine instance and therefore its own cache — the design notes
// explicitly warn against a shared singleton cache across tenants.
type Engine struct {
	store     store.ResourceStore
	accountID string
	cache     *scanCache
	now       func() time.Time

	treatMissingMetricsAsIdle bool
}

// New builds a detection Engine bound to one account's slice of the
// resource store.
func New(st store.ResourceStore, accountID string, opts ...Option) *Engine {
	e := &Engine{
		store:                     st,
		accountID:                 accountID,
		cache:                     &scanCache{},
		now:                       time.Now,
		treatMissingMetricsAsIdle: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvalidateCache discards the memoized scan result. Called by the
// executor after every successful action and by the drift-tick after
// every tick (§4.2.1).
func (e *Engine) InvalidateCache() {
	e.cache.invalidate()
}

// DetectAll runs (or returns the cached) detection scan. Passing
// refresh=true bypasses the cache even if it has not expired.
func (e *Engine) DetectAll(ctx context.Context, refresh bool) (model.DetectionResult, error) {
	now := e.now()
	if !refresh {
		if cached, ok := e.cache.get(now); ok {
			return cached, nil
		}
	}

	inv, err := fetchInventory(ctx, e.store, e.accountID)
	if err != nil {
		return model.DetectionResult{}, err
	}

	detections := e.evaluateAll(inv, now)

	result := model.DetectionResult{
		Detections:     detections,
		Summary:        model.Summarize(detections),
		ResourceCounts: inv.Count(),
		Timestamp:      now,
	}
	e.cache.set(result, now)
	log.Printf("detection: scan complete, %d detections across %d resources", len(detections), countAll(inv))
	return result, nil
}

func countAll(inv model.Inventory) int {
	c := inv.Count()
	return c.Instances + c.AutoscalingGroups + c.RDSInstances + c.CacheClusters +
		c.LoadBalancers + c.LambdaFunctions + c.Volumes + c.Snapshots +
		c.S3Buckets + c.LogGroups + c.ElasticIPs
}

// scenario is one pure rule evaluated over the snapshot. Rules never
// raise; an ill-formed row is skipped and logged (matching the
// teacher's tolerant, continue-on-error fan-out style).
type scenario struct {
	id   string
	eval func(e *Engine, inv model.Inventory, now time.Time) []model.Detection
}

// scenarioTable registers every rule by scenario_id, mirroring the way
// the teacher's scanners.go registers each ResourceScanner by name.
var scenarioTable = []scenario{
	{"idle_instance", ruleIdleInstance},
	{"orphaned_eip", ruleOrphanedEIP},
	{"unattached_volume", ruleUnattachedVolume},
	{"old_snapshot", ruleOldSnapshot},
	{"idle_rds", ruleIdleRDS},
	{"idle_cache", ruleIdleCache},
	{"idle_load_balancer", ruleIdleLoadBalancer},
	{"over_provisioned_lambda", ruleOverProvisionedLambda},
	{"s3_no_lifecycle", ruleS3NoLifecycle},
	{"log_no_retention", ruleLogNoRetention},
	{"forgotten_preview", ruleForgottenPreview},
	{"over_provisioned_asg", ruleOverProvisionedASG},
	{"stale_feature_env", ruleStaleFeatureEnv},
	{"idle_ci_runner", ruleIdleCIRunner},
	{"off_hours_dev", ruleOffHoursDev},
	{"over_provisioned_instance", ruleOverProvisionedInstance},
	{"gp2_volume", ruleGP2Volume},
	{"unused_lambda", ruleUnusedLambda},
	{"orphaned_snapshot", ruleOrphanedSnapshot},
	{"static_asg", ruleStaticASG},
	{"multi_az_non_prod", ruleMultiAZNonProd},
	{"empty_load_balancer", ruleEmptyLoadBalancer},
	{"s3_no_version_expiration", ruleS3NoVersionExpiration},
	{"over_configured_lambda_timeout", ruleOverConfiguredLambdaTimeout},
}

func (e *Engine) evaluateAll(inv model.Inventory, now time.Time) []model.Detection {
	var out []model.Detection
	for _, s := range scenarioTable {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("detection: scenario %s panicked, skipping: %v", s.id, r)
				}
			}()
			out = append(out, s.eval(e, inv, now)...)
		}()
	}
	return out
}
