// Package model defines the resource entities, detections, recommendations
// and audit records that make up the simulated cloud inventory and the
// engine's derived views over it.
package model

import "time"

// Header carries the fields common to every resource table.
type Header struct {
	ID        string            `json:"id" dynamodbav:"id"`
	AccountID string            `json:"accountId" dynamodbav:"account_id"`
	Region    string            `json:"region" dynamodbav:"region"`
	Env       string            `json:"env" dynamodbav:"env"`
	Tags      map[string]string `json:"tags" dynamodbav:"tags"`
	UpdatedAt time.Time         `json:"updatedAt" dynamodbav:"updated_at"`
}

// Instance states.
const (
	InstanceStateRunning    = "running"
	InstanceStateStopped    = "stopped"
	InstanceStateTerminated = "terminated"
)

// Instance is a compute instance row.
type Instance struct {
	Header
	InstanceID         string   `json:"instanceId" dynamodbav:"instance_id"`
	InstanceType       string   `json:"instanceType" dynamodbav:"instance_type"`
	State              string   `json:"state" dynamodbav:"state"`
	HourlyCost         float64  `json:"hourlyCost" dynamodbav:"hourly_cost"`
	AvgCPU7d           *float64 `json:"avgCpu7d,omitempty" dynamodbav:"avg_cpu_7d,omitempty"`
	CurrentCPU         *float64 `json:"currentCpu,omitempty" dynamodbav:"current_cpu,omitempty"`
	CurrentMemory      *float64 `json:"currentMemory,omitempty" dynamodbav:"current_memory,omitempty"`
	AutoscalingGroupID *string  `json:"autoscalingGroupId,omitempty" dynamodbav:"autoscaling_group_id,omitempty"`
	LaunchTime         time.Time `json:"launchTime" dynamodbav:"launch_time"`
}

// AutoscalingGroup is an ASG row.
type AutoscalingGroup struct {
	Header
	Name                string    `json:"name" dynamodbav:"name"`
	InstanceType        string    `json:"instanceType" dynamodbav:"instance_type"`
	MinSize             int       `json:"minSize" dynamodbav:"min_size"`
	MaxSize             int       `json:"maxSize" dynamodbav:"max_size"`
	DesiredCapacity     int       `json:"desiredCapacity" dynamodbav:"desired_capacity"`
	CurrentUtilization  *float64  `json:"currentUtilization,omitempty" dynamodbav:"current_utilization,omitempty"`
	CreatedAt           time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// AgeDays returns the age of the ASG in days as of now. forgotten_preview
// and stale_feature_env key off this.
func (a AutoscalingGroup) AgeDays(now time.Time) float64 {
	return now.Sub(a.CreatedAt).Hours() / 24
}

// RDS instance states.
const (
	RDSStateAvailable = "available"
	RDSStateStopped   = "stopped"
)

// RDSInstance is a managed relational database row.
type RDSInstance struct {
	Header
	DBInstanceID     string   `json:"dbInstanceId" dynamodbav:"db_instance_id"`
	InstanceClass    string   `json:"instanceClass" dynamodbav:"instance_class"`
	Engine           string   `json:"engine" dynamodbav:"engine"`
	State            string   `json:"state" dynamodbav:"state"`
	MultiAZ          bool     `json:"multiAz" dynamodbav:"multi_az"`
	AvgCPU7d         *float64 `json:"avgCpu7d,omitempty" dynamodbav:"avg_cpu_7d,omitempty"`
	AvgConnections7d *float64 `json:"avgConnections7d,omitempty" dynamodbav:"avg_connections_7d,omitempty"`
}

// CacheCluster is an in-memory cache cluster row (Redis/Memcached-shaped).
type CacheCluster struct {
	Header
	ClusterID        string   `json:"clusterId" dynamodbav:"cluster_id"`
	NodeType         string   `json:"nodeType" dynamodbav:"node_type"`
	NumNodes         int      `json:"numNodes" dynamodbav:"num_nodes"`
	AvgCPU7d         *float64 `json:"avgCpu7d,omitempty" dynamodbav:"avg_cpu_7d,omitempty"`
	AvgConnections7d *float64 `json:"avgConnections7d,omitempty" dynamodbav:"avg_connections_7d,omitempty"`
}

// Load balancer types.
const (
	LBTypeApplication = "application"
	LBTypeNetwork     = "network"
	LBTypeClassic     = "classic"
)

// LoadBalancer is a load balancer row.
type LoadBalancer struct {
	Header
	LBArn               string   `json:"lbArn" dynamodbav:"lb_arn"`
	Name                string   `json:"name" dynamodbav:"name"`
	Type                string   `json:"type" dynamodbav:"type"`
	TargetCount         int      `json:"targetCount" dynamodbav:"target_count"`
	HealthyTargetCount  int      `json:"healthyTargetCount" dynamodbav:"healthy_target_count"`
	AvgRequestCount7d   *float64 `json:"avgRequestCount7d,omitempty" dynamodbav:"avg_request_count_7d,omitempty"`
}

// LambdaFunction is a serverless function row.
type LambdaFunction struct {
	Header
	Name              string   `json:"name" dynamodbav:"name"`
	MemoryMB          int      `json:"memoryMb" dynamodbav:"memory_mb"`
	TimeoutSeconds    int      `json:"timeoutSeconds" dynamodbav:"timeout_seconds"`
	Invocations7d     *float64 `json:"invocations7d,omitempty" dynamodbav:"invocations_7d,omitempty"`
	AvgDurationMs7d   *float64 `json:"avgDurationMs7d,omitempty" dynamodbav:"avg_duration_ms_7d,omitempty"`
	AvgMemoryUsedMB7d *float64 `json:"avgMemoryUsedMb7d,omitempty" dynamodbav:"avg_memory_used_mb_7d,omitempty"`
}

// Volume states and types.
const (
	VolumeStateInUse    = "in-use"
	VolumeStateAvailable = "available"
	VolumeStateDeleted  = "deleted"

	VolumeTypeGP2 = "gp2"
	VolumeTypeGP3 = "gp3"
	VolumeTypeIO1 = "io1"
	VolumeTypeIO2 = "io2"
	VolumeTypeST1 = "st1"
	VolumeTypeSC1 = "sc1"
)

// Volume is a block storage volume row.
type Volume struct {
	Header
	VolumeID           string    `json:"volumeId" dynamodbav:"volume_id"`
	VolumeType         string    `json:"volumeType" dynamodbav:"volume_type"`
	SizeGiB            int       `json:"sizeGib" dynamodbav:"size_gib"`
	State              string    `json:"state" dynamodbav:"state"`
	AttachedInstanceID *string   `json:"attachedInstanceId,omitempty" dynamodbav:"attached_instance_id,omitempty"`
	CreatedAt          time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// AgeDays returns the age of the volume in days as of now.
func (v Volume) AgeDays(now time.Time) float64 {
	return now.Sub(v.CreatedAt).Hours() / 24
}

// Snapshot is a point-in-time volume snapshot row.
type Snapshot struct {
	Header
	SnapshotID       string    `json:"snapshotId" dynamodbav:"snapshot_id"`
	SourceVolumeID   *string   `json:"sourceVolumeId,omitempty" dynamodbav:"source_volume_id,omitempty"`
	SizeGiB          int       `json:"sizeGib" dynamodbav:"size_gib"`
	RetentionPolicy  *string   `json:"retentionPolicy,omitempty" dynamodbav:"retention_policy,omitempty"`
	CreatedAt        time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// LifecycleTransition is one step of an S3 lifecycle rule.
type LifecycleTransition struct {
	Days         int    `json:"days" dynamodbav:"days"`
	StorageClass string `json:"storageClass" dynamodbav:"storage_class"`
}

// LifecycleRule is one ordered rule in a bucket's lifecycle configuration.
type LifecycleRule struct {
	ID                              string                 `json:"id" dynamodbav:"id"`
	Status                          string                 `json:"status" dynamodbav:"status"`
	Transitions                     []LifecycleTransition  `json:"transitions,omitempty" dynamodbav:"transitions,omitempty"`
	NoncurrentVersionExpirationDays *int                   `json:"noncurrentVersionExpirationDays,omitempty" dynamodbav:"noncurrent_version_expiration_days,omitempty"`
}

// HasNoncurrentVersionExpiration reports whether any rule expires
// noncurrent versions.
func HasNoncurrentVersionExpiration(rules []LifecycleRule) bool {
	for _, r := range rules {
		if r.NoncurrentVersionExpirationDays != nil {
			return true
		}
	}
	return false
}

// S3Bucket is an object storage bucket row.
type S3Bucket struct {
	Header
	Name              string          `json:"name" dynamodbav:"name"`
	VersioningEnabled bool            `json:"versioningEnabled" dynamodbav:"versioning_enabled"`
	LifecycleRules    []LifecycleRule `json:"lifecycleRules" dynamodbav:"lifecycle_rules"`
	SizeGiB           float64         `json:"sizeGib" dynamodbav:"size_gib"`
	StandardGiB       float64         `json:"standardGib" dynamodbav:"standard_gib"`
	IAGiB             float64         `json:"iaGib" dynamodbav:"ia_gib"`
	GlacierGiB        float64         `json:"glacierGib" dynamodbav:"glacier_gib"`
}

// LogGroup is a log aggregation group row.
type LogGroup struct {
	Header
	Name            string `json:"name" dynamodbav:"name"`
	RetentionDays   *int   `json:"retentionDays,omitempty" dynamodbav:"retention_days,omitempty"`
	StoredGiB       float64 `json:"storedGib" dynamodbav:"stored_gib"`
}

// ElasticIP states.
const (
	EIPStateAssociated   = "associated"
	EIPStateUnassociated = "unassociated"
)

// ElasticIP is a floating IP allocation row.
type ElasticIP struct {
	Header
	AllocationID        string  `json:"allocationId" dynamodbav:"allocation_id"`
	PublicIP            string  `json:"publicIp" dynamodbav:"public_ip"`
	AssociatedInstanceID *string `json:"associatedInstanceId,omitempty" dynamodbav:"associated_instance_id,omitempty"`
	State               string  `json:"state" dynamodbav:"state"`
}

// AgeDays returns the age of the snapshot in days as of now.
func (s Snapshot) AgeDays(now time.Time) float64 {
	return now.Sub(s.CreatedAt).Hours() / 24
}

// AgeDays returns the age of the instance in days as of now.
func (i Instance) AgeDays(now time.Time) float64 {
	return now.Sub(i.LaunchTime).Hours() / 24
}

// Inventory holds the eleven resource tables consulted in one scan.
// It is assembled once per detect_all() call from concurrent fetches
// and is never mutated once built.
type Inventory struct {
	Instances         []Instance
	AutoscalingGroups []AutoscalingGroup
	RDSInstances      []RDSInstance
	CacheClusters     []CacheCluster
	LoadBalancers     []LoadBalancer
	LambdaFunctions   []LambdaFunction
	Volumes           []Volume
	Snapshots         []Snapshot
	S3Buckets         []S3Bucket
	LogGroups         []LogGroup
	ElasticIPs        []ElasticIP
}

// ResourceCounts is a direct length-vector summary of an Inventory.
type ResourceCounts struct {
	Instances         int `json:"instances"`
	AutoscalingGroups int `json:"autoscalingGroups"`
	RDSInstances      int `json:"rdsInstances"`
	CacheClusters     int `json:"cacheClusters"`
	LoadBalancers     int `json:"loadBalancers"`
	LambdaFunctions   int `json:"lambdaFunctions"`
	Volumes           int `json:"volumes"`
	Snapshots         int `json:"snapshots"`
	S3Buckets         int `json:"s3Buckets"`
	LogGroups         int `json:"logGroups"`
	ElasticIPs        int `json:"elasticIPs"`
}

// Count computes ResourceCounts directly from the inventory's length vectors.
func (inv Inventory) Count() ResourceCounts {
	return ResourceCounts{
		Instances:         len(inv.Instances),
		AutoscalingGroups: len(inv.AutoscalingGroups),
		RDSInstances:      len(inv.RDSInstances),
		CacheClusters:     len(inv.CacheClusters),
		LoadBalancers:     len(inv.LoadBalancers),
		LambdaFunctions:   len(inv.LambdaFunctions),
		Volumes:           len(inv.Volumes),
		Snapshots:         len(inv.Snapshots),
		S3Buckets:         len(inv.S3Buckets),
		LogGroups:         len(inv.LogGroups),
		ElasticIPs:        len(inv.ElasticIPs),
	}
}
