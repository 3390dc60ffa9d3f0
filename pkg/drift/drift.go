// Package drift implements the drift-tick orchestrator (§4.5): advance
// one simulated account a single virtual day — cost/usage random walks,
// live-utilization refresh, probabilistic scenario injection — and,
// when in automated execution mode, auto-execute every mode-2 detection
// the new state produces.
package drift

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/recommendation"
	"github.com/cloudtrim/engine/pkg/store"
)

const dateLayout = "2006-01-02"

// Engine is the narrow seam drift needs into the detection engine: a
// cache-bypassing scan, per account.
type Engine interface {
	DetectAll(ctx context.Context, refresh bool) (model.DetectionResult, error)
	InvalidateCache()
}

// Executor is the narrow seam into the executor, matching
// pkg/executor.Executor's signature.
type Executor interface {
	Execute(ctx context.Context, accountID string, params model.ActionParams) (model.ActionResult, error)
}

// Driver ticks one account forward a single virtual day.
type Driver struct {
	store     store.ResourceStore
	modes     store.ExecutionModeStore
	engine    Engine
	executor  Executor
	accountID string
	now       func() time.Time
	rng       *rand.Rand
}

// New builds a Driver for one account. engine and executor are the
// same per-tenant instances used by the rest of the request path.
func New(rs store.ResourceStore, modes store.ExecutionModeStore, engine Engine, executor Executor, accountID string) *Driver {
	return &Driver{
		store:     rs,
		modes:     modes,
		engine:    engine,
		executor:  executor,
		accountID: accountID,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(1)),
	}
}

// WithClock overrides the driver's notion of "now", for deterministic tests.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// WithRand overrides the driver's random source, for deterministic tests.
func (d *Driver) WithRand(rng *rand.Rand) *Driver {
	d.rng = rng
	return d
}

// Tick advances the account one virtual day and, if autoExecute is true
// or the account's persisted execution mode is "automated", runs the
// mode-2 auto-execution pass (§4.5.3). Skips silently (zero result, no
// error) if the account has no daily-metrics history yet — §4.5.2 step 1.
func (d *Driver) Tick(ctx context.Context, autoExecute bool) (model.DriftResult, error) {
	start := d.now()

	nextDate, ok, err := d.nextVirtualDate(ctx)
	if err != nil {
		return model.DriftResult{}, model.WrapError(model.CodeStoreError, "drift: determine next date", err)
	}
	if !ok {
		log.Printf("drift: account %s has no metrics history, skipping tick", d.accountID)
		return model.DriftResult{}, nil
	}

	if err := d.driftInstanceCosts(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}
	if err := d.driftS3Usage(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}
	if err := d.driftLogUsage(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}
	if err := d.driftDataTransfer(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}
	if err := d.refreshLiveUtilization(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}
	if err := d.injectScenarios(ctx, nextDate); err != nil {
		return model.DriftResult{}, err
	}

	d.engine.InvalidateCache()

	detectionStart := d.now()
	scan, err := d.engine.DetectAll(ctx, true)
	if err != nil {
		return model.DriftResult{}, err
	}
	detectionMS := d.now().Sub(detectionStart).Milliseconds()

	result := model.DriftResult{
		Detection: model.DriftDetectionSummary{
			TotalDetections:    scan.Summary.TotalDetections,
			AutoSafeDetections: scan.Summary.AutoSafeDetections,
			TotalSavings:       scan.Summary.TotalSavings,
			AutoSafeSavings:    scan.Summary.AutoSafeSavings,
		},
		Timing: model.DriftTiming{DetectionMS: detectionMS},
	}

	mode, err := d.modes.GetMode(ctx, d.accountID)
	if err != nil {
		return model.DriftResult{}, model.WrapError(model.CodeStoreError, "drift: read execution mode", err)
	}
	result.Execution.Mode = mode

	if autoExecute || mode == model.ExecutionModeAutomated {
		d.runAutomatedExecution(ctx, scan, &result)
	}

	result.Timing.TotalMS = d.now().Sub(start).Milliseconds()
	log.Printf("drift: account %s ticked to %s, %d detections, %d auto-executed",
		d.accountID, nextDate, result.Detection.TotalDetections, result.Execution.Executed)
	return result, nil
}

// runAutomatedExecution executes every mode-2 detection sequentially
// through the executor (§4.5.3, §5 sequencing rationale), tolerating
// partial failure without rolling back prior successes.
func (d *Driver) runAutomatedExecution(ctx context.Context, scan model.DetectionResult, result *model.DriftResult) {
	for _, det := range scan.Detections {
		if det.Mode != model.ModeAutoSafe {
			continue
		}
		action, ok := recommendation.DefaultActionForScenario[det.ScenarioID]
		if !ok {
			continue
		}
		out, err := d.executor.Execute(ctx, d.accountID, model.ActionParams{
			Action:       action,
			ResourceType: det.ResourceType,
			ResourceID:   det.ResourceID,
			ResourceName: det.ResourceName,
			DetectionID:  det.DetectionID,
			ScenarioID:   det.ScenarioID,
			Details:      det.Details,
		})
		result.Execution.Executed++
		if err != nil {
			result.Execution.Failed++
			result.Execution.Results = append(result.Execution.Results, model.DriftExecutionItem{
				ResourceID: det.ResourceID, ResourceName: det.ResourceName, Action: action,
				Success: false, Message: err.Error(),
			})
			continue
		}
		if out.Success {
			result.Execution.Success++
		} else {
			result.Execution.Failed++
		}
		result.Execution.Results = append(result.Execution.Results, model.DriftExecutionItem{
			ResourceID: det.ResourceID, ResourceName: det.ResourceName, Action: action,
			Success: out.Success, Message: out.Message, DurationMS: out.DurationMS,
		})
	}
}

func (d *Driver) nextVirtualDate(ctx context.Context) (string, bool, error) {
	rows, err := d.store.SelectAll(ctx, d.accountID, store.TableDailyMetrics)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	max := ""
	for _, r := range rows {
		date, _ := r["date"].(string)
		if date > max {
			max = date
		}
	}
	t, err := time.Parse(dateLayout, max)
	if err != nil {
		return "", false, err
	}
	return t.AddDate(0, 0, 1).Format(dateLayout), true, nil
}

func (d *Driver) upsertMetric(ctx context.Context, resourceType, resourceID, date string, cost float64, usageGiB *float64) error {
	m := model.DailyMetric{
		ID:           uuid.New().String(),
		AccountID:    d.accountID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Date:         date,
		Cost:         cost,
		UsageGiB:     usageGiB,
		CreatedAt:    d.now(),
	}
	row, err := store.Encode(m)
	if err != nil {
		return err
	}
	return d.store.Upsert(ctx, d.accountID, store.TableDailyMetrics, []store.Row{row},
		[]string{"resourceType", "resourceId", "date"}, true)
}

func (d *Driver) metricFor(ctx context.Context, resourceType, resourceID, date string) (float64, bool) {
	rows, err := d.store.SelectAll(ctx, d.accountID, store.TableDailyMetrics)
	if err != nil {
		return 0, false
	}
	for _, r := range rows {
		if r["resourceType"] == resourceType && r["resourceId"] == resourceID && r["date"] == date {
			if c, ok := r["cost"].(float64); ok {
				return c, true
			}
		}
	}
	return 0, false
}

// driftInstanceCosts applies §4.5.2 step 2's random walk to every
// running instance's daily cost.
func (d *Driver) driftInstanceCosts(ctx context.Context, date string) error {
	rows, err := d.store.SelectAll(ctx, d.accountID, store.TableInstances)
	if err != nil {
		return err
	}
	yesterday := addDays(date, -1)
	for _, r := range rows {
		if r["state"] != model.InstanceStateRunning {
			continue
		}
		id, _ := r["instanceId"].(string)
		env, _ := r["env"].(string)
		hourly, _ := r["hourlyCost"].(float64)

		seed := hourly * 24
		if prior, ok := d.metricFor(ctx, "instance", id, yesterday); ok {
			seed = prior
		}

		walk := 1 + (-0.03 + d.rng.Float64()*0.08) // U(-3%, +5%)
		if !isNonProd(env) {
			walk += 0.02
		}
		if isNonProd(env) && isWeekend(mustParse(date)) {
			walk *= 0.7 + d.rng.Float64()*0.15 // U(0.7, 0.85)
		}
		next := seed * walk
		if err := d.upsertMetric(ctx, "instance", id, date, next, nil); err != nil {
			return err
		}
	}
	return nil
}

// driftS3Usage applies §4.5.2 step 3: standard-tier growth plus a slow
// tiering shift for buckets that have a lifecycle rule.
func (d *Driver) driftS3Usage(ctx context.Context, date string) error {
	rows, err := d.store.SelectAll(ctx, d.accountID, store.TableS3Buckets)
	if err != nil {
		return err
	}
	for _, r := range rows {
		env, _ := r["env"].(string)
		id, _ := r["id"].(string)
		standard := floatAt(r, "standardGib")
		ia := floatAt(r, "iaGib")
		glacier := floatAt(r, "glacierGib")

		var growth float64
		if !isNonProd(env) {
			growth = 1 + 0.01 + d.rng.Float64()*0.02 // 1-3% prod
		} else {
			growth = 1 + 0.003 + d.rng.Float64()*0.012 // 0.3-1.5% non-prod
		}
		standard *= growth

		hasLifecycle := len(sliceAt(r, "lifecycleRules")) > 0
		if hasLifecycle {
			toIA := standard * 0.005
			standard -= toIA
			ia += toIA
			toGlacier := ia * 0.003
			ia -= toGlacier
			glacier += toGlacier
		}

		cost := (standard*0.023 + ia*0.0125 + glacier*0.004) / 30
		if err := d.upsertMetric(ctx, "s3_bucket", id, date, cost, &standard); err != nil {
			return err
		}
		patch := store.Row{"standardGib": standard, "iaGib": ia, "glacierGib": glacier, "sizeGib": standard + ia + glacier}
		if _, err := d.store.Update(ctx, d.accountID, store.TableS3Buckets, "id", id, patch); err != nil {
			return err
		}
	}
	return nil
}

// driftLogUsage applies §4.5.2 step 4: daily ingestion added to the
// stored total, capped by a coarse retention-derived ceiling.
func (d *Driver) driftLogUsage(ctx context.Context, date string) error {
	rows, err := d.store.SelectAll(ctx, d.accountID, store.TableLogGroups)
	if err != nil {
		return err
	}
	weekend := isWeekend(mustParse(date))
	for _, r := range rows {
		env, _ := r["env"].(string)
		id, _ := r["id"].(string)
		name, _ := r["name"].(string)
		stored := floatAt(r, "storedGib")

		var ingested float64
		if !isNonProd(env) {
			ingested = 0.5 + d.rng.Float64()*2.5 // U(0.5, 3)
		} else {
			ingested = 0.1 + d.rng.Float64()*0.7 // U(0.1, 0.8)
		}
		if weekend && !strings.Contains(strings.ToLower(name), "preview") {
			ingested *= 0.7
		}
		stored += ingested

		if rd, ok := r["retentionDays"].(float64); ok {
			cap := rd * 3 // coarse ceiling: ~3 GiB/day ingestion assumption
			if stored > cap {
				stored = cap
			}
		}
		if err := d.upsertMetric(ctx, "log_group", id, date, 0, &ingested); err != nil {
			return err
		}
		if _, err := d.store.Update(ctx, d.accountID, store.TableLogGroups, "id", id, store.Row{"storedGib": stored}); err != nil {
			return err
		}
	}
	return nil
}

// dataTransferDirections are the three fixed per-day records §4.5.2
// step 5 names, each with its own per-GB cost multiplier.
var dataTransferDirections = []struct {
	name string
	rate float64
}{
	{"cross_region", 0.02},
	{"egress_internet", 0.09},
	{"cross_az", 0.01},
}

func (d *Driver) driftDataTransfer(ctx context.Context, date string) error {
	for _, dir := range dataTransferDirections {
		gb := 1 + d.rng.Float64()*20
		cost := gb * dir.rate
		if err := d.upsertMetric(ctx, "data_transfer", dir.name, date, cost, &gb); err != nil {
			return err
		}
	}
	return nil
}

// refreshLiveUtilization applies §4.5.2 step 6: env-conditional current
// CPU/memory on every running instance, and U(30,70) utilization on
// every ASG. These are last-writer-wins fields with no read-modify-write
// guard, per §5's explicit allowance.
func (d *Driver) refreshLiveUtilization(ctx context.Context, date string) error {
	weekend := isWeekend(mustParse(date))

	instRows, err := d.store.SelectAll(ctx, d.accountID, store.TableInstances)
	if err != nil {
		return err
	}
	for _, r := range instRows {
		if r["state"] != model.InstanceStateRunning {
			continue
		}
		id, _ := r["id"].(string)
		env, _ := r["env"].(string)
		cpu, mem := d.liveUtilizationFor(env, weekend)
		if _, err := d.store.Update(ctx, d.accountID, store.TableInstances, "id", id,
			store.Row{"currentCpu": cpu, "currentMemory": mem}); err != nil {
			return err
		}
	}

	asgRows, err := d.store.SelectAll(ctx, d.accountID, store.TableAutoscalingGroups)
	if err != nil {
		return err
	}
	for _, r := range asgRows {
		id, _ := r["id"].(string)
		util := 30 + d.rng.Float64()*40
		if _, err := d.store.Update(ctx, d.accountID, store.TableAutoscalingGroups, "id", id,
			store.Row{"currentUtilization": util}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) liveUtilizationFor(env string, weekend bool) (float64, float64) {
	lower := strings.ToLower(env)
	switch {
	case lower == "prod" || lower == "production":
		return 50 + d.rng.Float64()*35, 50 + d.rng.Float64()*35
	case lower == "preview":
		return 1 + d.rng.Float64()*8, 1 + d.rng.Float64()*8
	default: // dev/staging/test/qa
		if weekend {
			return d.rng.Float64() * 5, d.rng.Float64() * 5
		}
		return 5 + d.rng.Float64()*20, 5 + d.rng.Float64()*20
	}
}

func isNonProd(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "staging", "test", "preview", "development", "qa":
		return true
	default:
		return false
	}
}

func isWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}

func mustParse(date string) time.Time {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}
	}
	return t
}

func addDays(date string, n int) string {
	return mustParse(date).AddDate(0, 0, n).Format(dateLayout)
}

func floatAt(r store.Row, field string) float64 {
	v, _ := r[field].(float64)
	return v
}

func sliceAt(r store.Row, field string) []any {
	v, _ := r[field].([]any)
	return v
}
