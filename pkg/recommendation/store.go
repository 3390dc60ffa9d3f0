// Package recommendation implements the recommendation lifecycle: an
// idempotent ingest path from fresh detections and a six-state machine
// enforcing the legal approve/reject/snooze/schedule/execute
// transitions (§4.3).
package recommendation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

const recommendationTable store.Table = "recommendations"

// Store is the durable recommendation store, backed by a generic
// ResourceStore (MemStore in the simulated world, DynamoStore when
// deployed).
type Store struct {
	resourceStore store.ResourceStore
	accountID     string
	now           func() time.Time
	executor      Executor
	explainer     Explainer
}

// Explainer is the narrow seam into pkg/explain. It is never on the
// critical path: SetExplainer is optional, and a failure attaching an
// explanation is logged and swallowed rather than failing Ingest.
type Explainer interface {
	Explain(ctx context.Context, d model.Detection) (string, error)
}

// SetExplainer wires an optional natural-language explainer. Ingest
// calls it best-effort for each newly created recommendation.
func (s *Store) SetExplainer(ex Explainer) *Store {
	s.explainer = ex
	return s
}

// New builds a recommendation Store for one account.
func New(rs store.ResourceStore, accountID string) *Store {
	return &Store{resourceStore: rs, accountID: accountID, now: time.Now}
}

// WithClock overrides the store's notion of "now", for deterministic tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ingest inserts one pending recommendation per detection whose
// detection_id is not already present, and is the only path that
// creates recommendations (§4.3.1). Re-ingesting the same detection set
// is a no-op: the second call returns created=0 (P1).
func (s *Store) Ingest(ctx context.Context, detections []model.Detection) (model.IngestResult, error) {
	var result model.IngestResult
	now := s.now()
	for _, d := range detections {
		_, found, err := s.resourceStore.SelectByKey(ctx, s.accountID, recommendationTable, "detectionId", d.DetectionID)
		if err != nil {
			return result, model.WrapError(model.CodeStoreError, "ingest: lookup existing recommendation", err)
		}
		if found {
			result.Skipped++
			continue
		}
		rec := model.NewRecommendation(uuid.New().String(), d, now)
		rec.Title, rec.Description = titleAndDescription(d)
		row, err := store.Encode(rec)
		if err != nil {
			return result, model.WrapError(model.CodeStoreError, "ingest: encode recommendation", err)
		}
		if _, err := s.resourceStore.Insert(ctx, s.accountID, recommendationTable, row); err != nil {
			return result, model.WrapError(model.CodeStoreError, "ingest: insert recommendation", err)
		}
		result.Created++
		s.attachExplanation(ctx, rec, d)
	}
	log.Printf("recommendation: ingest created=%d skipped=%d", result.Created, result.Skipped)
	return result, nil
}

// attachExplanation best-effort calls the explainer and patches the
// stored recommendation with its output. Never blocks Ingest's return
// path on failure (§4.9 of the expanded spec).
func (s *Store) attachExplanation(ctx context.Context, rec model.Recommendation, d model.Detection) {
	if s.explainer == nil {
		return
	}
	explanation, err := s.explainer.Explain(ctx, d)
	if err != nil {
		log.Printf("recommendation: explain failed for %s (continuing without it): %v", rec.ID, err)
		return
	}
	rec.Explanation = explanation
	if _, err := s.save(ctx, rec); err != nil {
		log.Printf("recommendation: failed to persist explanation for %s: %v", rec.ID, err)
	}
}

// titleAndDescription derives short human-readable copy from a
// detection's scenario and resource. pkg/explain may later attach a
// richer, LLM-generated explanation on top of this.
func titleAndDescription(d model.Detection) (title, description string) {
	title = fmt.Sprintf("%s: %s", scenarioLabel(d.ScenarioID), d.ResourceName)
	description = fmt.Sprintf("%s flagged %s %q in %s/%s as waste with %d%% confidence; estimated savings $%.2f/mo.",
		scenarioLabel(d.ScenarioID), d.ResourceType, d.ResourceName, d.AccountID, d.Region, d.Confidence, d.PotentialSavings)
	return
}

var scenarioLabels = map[string]string{
	"idle_instance":                   "Idle instance",
	"orphaned_eip":                    "Orphaned Elastic IP",
	"unattached_volume":               "Unattached volume",
	"old_snapshot":                    "Old snapshot",
	"idle_rds":                        "Idle database",
	"idle_cache":                      "Idle cache cluster",
	"idle_load_balancer":              "Idle load balancer",
	"over_provisioned_lambda":         "Over-provisioned Lambda memory",
	"s3_no_lifecycle":                 "Bucket with no lifecycle policy",
	"log_no_retention":                "Log group with no retention policy",
	"forgotten_preview":               "Forgotten preview environment",
	"over_provisioned_asg":            "Over-provisioned autoscaling group",
	"stale_feature_env":               "Stale feature environment",
	"idle_ci_runner":                  "Idle CI runner",
	"off_hours_dev":                   "Dev instance running off-hours",
	"over_provisioned_instance":       "Over-provisioned instance",
	"gp2_volume":                      "Legacy gp2 volume",
	"unused_lambda":                   "Unused Lambda function",
	"orphaned_snapshot":               "Orphaned snapshot",
	"static_asg":                      "Static-sized autoscaling group",
	"multi_az_non_prod":               "Multi-AZ database in non-prod",
	"empty_load_balancer":             "Empty load balancer",
	"s3_no_version_expiration":        "Bucket with unbounded object versions",
	"over_configured_lambda_timeout":  "Over-configured Lambda timeout",
}

func scenarioLabel(scenarioID string) string {
	if label, ok := scenarioLabels[scenarioID]; ok {
		return label
	}
	return scenarioID
}

// List returns recommendations matching filter, sorted by impact level
// descending then created_at descending when the filter requests the
// pending status (§4.3.1).
func (s *Store) List(ctx context.Context, filter model.RecommendationFilter) ([]model.Recommendation, error) {
	rows, err := s.resourceStore.SelectAll(ctx, s.accountID, recommendationTable)
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, "list recommendations", err)
	}
	recs, err := store.DecodeAll[model.Recommendation](rows)
	if err != nil {
		return nil, model.WrapError(model.CodeStoreError, "decode recommendations", err)
	}

	statusSet := make(map[string]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statusSet[st] = true
	}

	var out []model.Recommendation
	for _, r := range recs {
		if len(statusSet) > 0 && !statusSet[r.Status] {
			continue
		}
		if filter.ScenarioID != "" && r.ScenarioID != filter.ScenarioID {
			continue
		}
		if filter.ResourceType != "" && r.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ImpactLevel != "" && r.ImpactLevel != filter.ImpactLevel {
			continue
		}
		out = append(out, r)
	}

	requestsPending := statusSet[model.StatusPending] && len(statusSet) == 1
	sort.Slice(out, func(i, j int) bool {
		if requestsPending {
			ri, rj := model.ImpactRank(out[i].ImpactLevel), model.ImpactRank(out[j].ImpactLevel)
			if ri != rj {
				return ri > rj
			}
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []model.Recommendation{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Summary aggregates counts per status and savings rollups (§4.3.1).
func (s *Store) Summary(ctx context.Context) (model.RecommendationSummary, error) {
	rows, err := s.resourceStore.SelectAll(ctx, s.accountID, recommendationTable)
	if err != nil {
		return model.RecommendationSummary{}, model.WrapError(model.CodeStoreError, "summary", err)
	}
	recs, err := store.DecodeAll[model.Recommendation](rows)
	if err != nil {
		return model.RecommendationSummary{}, model.WrapError(model.CodeStoreError, "decode recommendations", err)
	}

	sum := model.RecommendationSummary{
		CountByStatus:       make(map[string]int),
		CountByResourceType: make(map[string]int),
		CountByScenario:     make(map[string]int),
	}
	for _, r := range recs {
		sum.CountByStatus[r.Status]++
		sum.CountByResourceType[r.ResourceType]++
		sum.CountByScenario[r.ScenarioID]++
		sum.TotalPotentialSavings += r.PotentialSavings
		if r.Status == model.StatusPending {
			sum.PendingSavings += r.PotentialSavings
		}
	}
	return sum, nil
}

// Delete removes a recommendation by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.resourceStore.Delete(ctx, s.accountID, recommendationTable, "id", id)
}

// Get returns one recommendation by id.
func (s *Store) Get(ctx context.Context, id string) (model.Recommendation, bool, error) {
	row, found, err := s.resourceStore.SelectByKey(ctx, s.accountID, recommendationTable, "id", id)
	if err != nil {
		return model.Recommendation{}, false, model.WrapError(model.CodeStoreError, "get recommendation", err)
	}
	if !found {
		return model.Recommendation{}, false, nil
	}
	var rec model.Recommendation
	if err := store.Decode(row, &rec); err != nil {
		return model.Recommendation{}, false, model.WrapError(model.CodeStoreError, "decode recommendation", err)
	}
	return rec, true, nil
}

func (s *Store) save(ctx context.Context, rec model.Recommendation) (model.Recommendation, error) {
	row, err := store.Encode(rec)
	if err != nil {
		return model.Recommendation{}, model.WrapError(model.CodeStoreError, "encode recommendation", err)
	}
	if _, err := s.resourceStore.Update(ctx, s.accountID, recommendationTable, "id", rec.ID, row); err != nil {
		return model.Recommendation{}, err
	}
	return rec, nil
}
