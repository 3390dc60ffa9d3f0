package drift

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

// injector is one probabilistic scenario emission (§4.5.2 step 7): with
// probability p, insert a new waste-shaped row and record a
// resource-change-event. Each is independent of the others.
type injector struct {
	name string
	p    float64
	run  func(d *Driver, ctx context.Context, now time.Time) (resourceType, resourceID, description string, err error)
}

// injectors covers the scenario-injection list named in §4.5.2 step 7.
// Each introduces a row the corresponding detection rule would flag on
// the next scan.
var injectors = []injector{
	{"forgotten_preview", 0.05, injectForgottenPreview},
	{"over_provisioned_asg_step", 0.05, injectOverProvisionedASG},
	{"idle_ci_runner", 0.04, injectIdleCIRunner},
	{"unoptimized_s3_bucket", 0.06, injectUnoptimizedBucket},
	{"retentionless_log_group", 0.05, injectRetentionlessLogGroup},
	{"off_hours_dev_instance", 0.08, injectOffHoursDevInstance},
	{"stale_feature_env", 0.04, injectStaleFeatureEnv},
	{"orphaned_eip", 0.06, injectOrphanedEIP},
	{"unattached_volume", 0.07, injectUnattachedVolume},
	{"old_snapshot", 0.06, injectOldSnapshot},
	{"idle_rds", 0.03, injectIdleRDS},
	{"idle_cache", 0.03, injectIdleCache},
	{"idle_load_balancer", 0.04, injectIdleLoadBalancer},
	{"over_provisioned_lambda", 0.05, injectOverProvisionedLambda},
}

func (d *Driver) injectScenarios(ctx context.Context, date string) error {
	now := d.now()
	for _, inj := range injectors {
		if d.rng.Float64() > inj.p {
			continue
		}
		resourceType, resourceID, description, err := inj.run(d, ctx, now)
		if err != nil {
			return err
		}
		if resourceID == "" {
			continue
		}
		event := model.ResourceChangeEvent{
			ID:           uuid.New().String(),
			AccountID:    d.accountID,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			ChangeSource: model.ChangeSourceDriftEngine,
			Description:  description,
			CreatedAt:    now,
		}
		row, err := store.Encode(event)
		if err != nil {
			return err
		}
		if _, err := d.store.Insert(ctx, d.accountID, store.TableResourceChangeEvents, row); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) insert(ctx context.Context, table store.Table, v any) error {
	row, err := store.Encode(v)
	if err != nil {
		return err
	}
	_, err = d.store.Insert(ctx, d.accountID, table, row)
	return err
}

func injectForgottenPreview(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "asg-preview-" + uuid.NewString()[:8]
	util := 3.0
	asg := model.AutoscalingGroup{
		Header:             model.Header{ID: id, AccountID: d.accountID, Env: "preview"},
		Name:               "preview-" + id,
		InstanceType:       "t3.small",
		MinSize:            1,
		MaxSize:            2,
		DesiredCapacity:    1,
		CurrentUtilization: &util,
		CreatedAt:          now.AddDate(0, 0, -45),
	}
	if err := d.insert(ctx, store.TableAutoscalingGroups, asg); err != nil {
		return "", "", "", err
	}
	return "autoscaling_group", id, "preview environment left running past its expected lifetime", nil
}

func injectOverProvisionedASG(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "asg-" + uuid.NewString()[:8]
	util := 10.0
	asg := model.AutoscalingGroup{
		Header:             model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		Name:               "scaled-" + id,
		InstanceType:       "m5.large",
		MinSize:            2,
		MaxSize:            10,
		DesiredCapacity:    8,
		CurrentUtilization: &util,
		CreatedAt:          now.AddDate(0, 0, -90),
	}
	if err := d.insert(ctx, store.TableAutoscalingGroups, asg); err != nil {
		return "", "", "", err
	}
	return "autoscaling_group", id, "desired capacity stepped up beyond current demand", nil
}

func injectIdleCIRunner(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "i-ci-" + uuid.NewString()[:8]
	cpu := 2.0
	inst := model.Instance{
		Header:       model.Header{ID: id, AccountID: d.accountID, Env: "dev", Tags: map[string]string{"Name": "ci-runner"}},
		InstanceID:   id,
		InstanceType: "t3.large",
		State:        model.InstanceStateRunning,
		HourlyCost:   0.0832,
		AvgCPU7d:     &cpu,
		LaunchTime:   now.AddDate(0, 0, -20),
	}
	if err := d.insert(ctx, store.TableInstances, inst); err != nil {
		return "", "", "", err
	}
	return "instance", id, "CI runner idle outside of build windows", nil
}

func injectUnoptimizedBucket(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "bucket-" + uuid.NewString()[:8]
	b := model.S3Bucket{
		Header:            model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		Name:              id,
		VersioningEnabled: false,
		SizeGiB:           500,
		StandardGiB:       500,
	}
	if err := d.insert(ctx, store.TableS3Buckets, b); err != nil {
		return "", "", "", err
	}
	return "s3_bucket", id, "bucket accumulating Standard-tier data with no lifecycle policy", nil
}

func injectRetentionlessLogGroup(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "log-" + uuid.NewString()[:8]
	lg := model.LogGroup{
		Header:    model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		Name:      "/drift/" + id,
		StoredGiB: 5,
	}
	if err := d.insert(ctx, store.TableLogGroups, lg); err != nil {
		return "", "", "", err
	}
	return "log_group", id, "log group created with no retention policy", nil
}

func injectOffHoursDevInstance(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	if !isWeekend(now) {
		return "", "", "", nil
	}
	id := "i-dev-" + uuid.NewString()[:8]
	inst := model.Instance{
		Header:       model.Header{ID: id, AccountID: d.accountID, Env: "dev"},
		InstanceID:   id,
		InstanceType: "t3.medium",
		State:        model.InstanceStateRunning,
		HourlyCost:   0.0416,
		LaunchTime:   now,
	}
	if err := d.insert(ctx, store.TableInstances, inst); err != nil {
		return "", "", "", err
	}
	return "instance", id, "dev instance left running over the weekend", nil
}

func injectStaleFeatureEnv(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "asg-feature-" + uuid.NewString()[:8]
	util := 3.0
	asg := model.AutoscalingGroup{
		Header:             model.Header{ID: id, AccountID: d.accountID, Env: "staging"},
		Name:               "feature-" + id,
		InstanceType:       "t3.small",
		MinSize:            1,
		MaxSize:            1,
		DesiredCapacity:    1,
		CurrentUtilization: &util,
		CreatedAt:          now.AddDate(0, 0, -60),
	}
	if err := d.insert(ctx, store.TableAutoscalingGroups, asg); err != nil {
		return "", "", "", err
	}
	return "autoscaling_group", id, "feature-branch environment outlived its branch", nil
}

func injectOrphanedEIP(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "eip-" + uuid.NewString()[:8]
	eip := model.ElasticIP{
		Header:   model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		AllocationID: id,
		PublicIP: "203.0.113." + uuid.NewString()[:2],
		State:    model.EIPStateUnassociated,
	}
	if err := d.insert(ctx, store.TableElasticIPs, eip); err != nil {
		return "", "", "", err
	}
	return "elastic_ip", id, "Elastic IP released from its instance but not deallocated", nil
}

func injectUnattachedVolume(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "vol-" + uuid.NewString()[:8]
	v := model.Volume{
		Header:     model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		VolumeID:   id,
		VolumeType: model.VolumeTypeGP2,
		SizeGiB:    100,
		State:      model.VolumeStateAvailable,
		CreatedAt:  now.AddDate(0, 0, -40),
	}
	if err := d.insert(ctx, store.TableVolumes, v); err != nil {
		return "", "", "", err
	}
	return "volume", id, "volume detached from its instance and left unattached", nil
}

func injectOldSnapshot(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "snap-" + uuid.NewString()[:8]
	s := model.Snapshot{
		Header:    model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		SnapshotID: id,
		SizeGiB:   50,
		CreatedAt: now.AddDate(0, 0, -120),
	}
	if err := d.insert(ctx, store.TableSnapshots, s); err != nil {
		return "", "", "", err
	}
	return "snapshot", id, "snapshot aged well past its useful retention window", nil
}

func injectIdleRDS(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "db-" + uuid.NewString()[:8]
	cpu := 2.0
	conns := 0.0
	r := model.RDSInstance{
		Header:           model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		DBInstanceID:     id,
		InstanceClass:    "db.t3.medium",
		Engine:           "postgres",
		State:            model.RDSStateAvailable,
		AvgCPU7d:         &cpu,
		AvgConnections7d: &conns,
	}
	if err := d.insert(ctx, store.TableRDSInstances, r); err != nil {
		return "", "", "", err
	}
	return "rds_instance", id, "database instance with near-zero connections and CPU", nil
}

func injectIdleCache(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "cache-" + uuid.NewString()[:8]
	cpu := 1.0
	c := model.CacheCluster{
		Header:    model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		ClusterID: id,
		NodeType:  "cache.t3.medium",
		NumNodes:  1,
		AvgCPU7d:  &cpu,
	}
	if err := d.insert(ctx, store.TableCacheClusters, c); err != nil {
		return "", "", "", err
	}
	return "cache_cluster", id, "cache cluster with negligible utilization", nil
}

func injectIdleLoadBalancer(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "lb-" + uuid.NewString()[:8]
	requests := 1.0
	lb := model.LoadBalancer{
		Header:            model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		LBArn:             "arn:aws:elasticloadbalancing:sim:" + id,
		Name:              id,
		Type:              model.LBTypeApplication,
		TargetCount:       1,
		HealthyTargetCount: 1,
		AvgRequestCount7d: &requests,
	}
	if err := d.insert(ctx, store.TableLoadBalancers, lb); err != nil {
		return "", "", "", err
	}
	return "load_balancer", id, "load balancer carrying almost no traffic", nil
}

func injectOverProvisionedLambda(d *Driver, ctx context.Context, now time.Time) (string, string, string, error) {
	id := "fn-" + uuid.NewString()[:8]
	usedMem := 128.0
	fn := model.LambdaFunction{
		Header:            model.Header{ID: id, AccountID: d.accountID, Env: "prod"},
		Name:              id,
		MemoryMB:          1024,
		TimeoutSeconds:    30,
		AvgMemoryUsedMB7d: &usedMem,
	}
	if err := d.insert(ctx, store.TableLambdaFunctions, fn); err != nil {
		return "", "", "", err
	}
	return "lambda_function", id, "function configured with far more memory than it uses", nil
}
