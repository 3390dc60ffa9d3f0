// Package pricing implements the engine's pricing oracle: pure,
// deterministic table lookups with no I/O, matching the teacher's
// estimateEC2MonthlyCost/estimateRDSCosts style of flat rate tables
// rather than a live Cost Explorer call.
package pricing

// HoursPerMonth is the single centralized month-length constant used by
// every cost formula in this package.
const HoursPerMonth = 720

// instanceHourly is the ~12-entry instance catalog. Unknown types fall
// back to a flat $0.10/h rate rather than erroring, mirroring the
// teacher's "simplified pricing model, default if we can't parse" idiom.
var instanceHourly = map[string]float64{
	"t3.nano":    0.0052,
	"t3.micro":   0.0104,
	"t3.small":   0.0208,
	"t3.medium":  0.0416,
	"t3.large":   0.0832,
	"t3.xlarge":  0.1664,
	"t3.2xlarge": 0.3328,
	"m5.large":   0.096,
	"m5.xlarge":  0.192,
	"c5.large":   0.085,
	"c5.xlarge":  0.17,
	"r5.large":   0.126,
}

const fallbackInstanceHourly = 0.10

// instanceFamilyLadder lists each family's sizes smallest-to-largest, the
// same family groupings the teacher's family-multiplier switch uses
// (t3/m5/c5/r5), so recommended_smaller_instance can walk one step down
// within a family.
var instanceFamilyLadder = map[string][]string{
	"t3": {"t3.nano", "t3.micro", "t3.small", "t3.medium", "t3.large", "t3.xlarge", "t3.2xlarge"},
	"m5": {"m5.large", "m5.xlarge"},
	"c5": {"c5.large", "c5.xlarge"},
	"r5": {"r5.large"},
}

// InstanceMonthlyCost returns the monthly cost of an instance type.
func InstanceMonthlyCost(instanceType string) float64 {
	hourly, ok := instanceHourly[instanceType]
	if !ok {
		hourly = fallbackInstanceHourly
	}
	return hourly * HoursPerMonth
}

// RecommendedSmallerInstance walks the fixed family sibling ladder one
// step down from instanceType. Returns "", false at the floor of the
// ladder or for an unrecognized type.
func RecommendedSmallerInstance(instanceType string) (string, bool) {
	family, _, ok := splitInstanceType(instanceType)
	if !ok {
		return "", false
	}
	ladder, ok := instanceFamilyLadder[family]
	if !ok {
		return "", false
	}
	for i, size := range ladder {
		if size == instanceType {
			if i == 0 {
				return "", false
			}
			return ladder[i-1], true
		}
	}
	return "", false
}

func splitInstanceType(instanceType string) (family, size string, ok bool) {
	for i := 0; i < len(instanceType); i++ {
		if instanceType[i] == '.' {
			return instanceType[:i], instanceType[i+1:], true
		}
	}
	return "", "", false
}

// rdsClassHourly is the RDS instance-class catalog, keyed the same way
// as the downsize_rds ladder (db.t3.{micro,small,medium,large,xlarge}).
var rdsClassHourly = map[string]float64{
	"db.t3.micro":  0.017,
	"db.t3.small":  0.034,
	"db.t3.medium": 0.068,
	"db.t3.large":  0.136,
	"db.t3.xlarge": 0.272,
	"db.m5.large":  0.171,
	"db.m5.xlarge": 0.342,
	"db.r5.large":  0.24,
}

const fallbackRDSHourly = 0.05

// rdsDownsizeLadder is the fixed ladder downsize_rds walks one step down,
// per the executor contract — independent from the pricing catalog above
// (it only needs to name the five classes, not their order relative to
// m5/r5).
var rdsDownsizeLadder = []string{
	"db.t3.micro", "db.t3.small", "db.t3.medium", "db.t3.large", "db.t3.xlarge",
}

// RDSMonthlyCost returns the monthly cost of an RDS instance class.
func RDSMonthlyCost(instanceClass string) float64 {
	hourly, ok := rdsClassHourly[instanceClass]
	if !ok {
		hourly = fallbackRDSHourly
	}
	return hourly * HoursPerMonth
}

// DownsizeRDSClass walks the fixed db.t3 ladder one step down. No-op
// (returns the same class, false) at the floor or for classes outside
// the ladder.
func DownsizeRDSClass(instanceClass string) (string, bool) {
	for i, class := range rdsDownsizeLadder {
		if class == instanceClass {
			if i == 0 {
				return instanceClass, false
			}
			return rdsDownsizeLadder[i-1], true
		}
	}
	return instanceClass, false
}

// cacheNodeHourly is the ElastiCache node-type catalog.
var cacheNodeHourly = map[string]float64{
	"cache.t3.micro":  0.017,
	"cache.t3.small":  0.034,
	"cache.t3.medium": 0.068,
	"cache.m5.large":  0.156,
	"cache.r5.large":  0.216,
}

const fallbackCacheHourly = 0.04

// CacheMonthlyCost returns the monthly cost of a cache cluster with
// numNodes nodes of the given node type.
func CacheMonthlyCost(nodeType string, numNodes int) float64 {
	hourly, ok := cacheNodeHourly[nodeType]
	if !ok {
		hourly = fallbackCacheHourly
	}
	if numNodes < 1 {
		numNodes = 1
	}
	return hourly * HoursPerMonth * float64(numNodes)
}

// lcuHourlyRate is the per-LCU hourly charge, applied on top of the
// flat per-hour load balancer charge.
const (
	lbBaseHourly = 0.0225
	lcuHourlyRate = 0.008
)

// LBMonthlyCost returns the monthly cost of a load balancer billed for
// lcu load-balancer capacity units.
func LBMonthlyCost(lcu float64) float64 {
	if lcu < 0 {
		lcu = 0
	}
	return (lbBaseHourly + lcu*lcuHourlyRate) * HoursPerMonth
}

// Per-GiB-month storage rates.
const (
	gp2PerGiBMonth = 0.10
	gp3PerGiBMonth = 0.08 // ~20% cheaper than gp2 at equal size
	io1PerGiBMonth = 0.125
	io2PerGiBMonth = 0.125
	st1PerGiBMonth = 0.045
	sc1PerGiBMonth = 0.025
)

var volumeTypeRate = map[string]float64{
	"gp2": gp2PerGiBMonth,
	"gp3": gp3PerGiBMonth,
	"io1": io1PerGiBMonth,
	"io2": io2PerGiBMonth,
	"st1": st1PerGiBMonth,
	"sc1": sc1PerGiBMonth,
}

// VolumeMonthlyCost returns the monthly cost of sizeGiB GiB of the given
// volume type. Unknown types fall back to the gp2 rate.
func VolumeMonthlyCost(volumeType string, sizeGiB int) float64 {
	rate, ok := volumeTypeRate[volumeType]
	if !ok {
		rate = gp2PerGiBMonth
	}
	return rate * float64(sizeGiB)
}

// snapshotPerGiBMonth is the flat snapshot storage rate.
const snapshotPerGiBMonth = 0.05

// SnapshotMonthlyCost returns the monthly cost of sizeGiB GiB of
// snapshot storage.
func SnapshotMonthlyCost(sizeGiB int) float64 {
	return snapshotPerGiBMonth * float64(sizeGiB)
}

// unattachedEIPHourly is the hourly charge AWS levies on an Elastic IP
// that is not associated with a running instance.
const unattachedEIPHourly = 0.005

// UnattachedEIPMonthlyCost returns the monthly cost of one unassociated
// Elastic IP.
func UnattachedEIPMonthlyCost() float64 {
	return unattachedEIPHourly * HoursPerMonth
}

// S3 storage-tier per-GiB-month rates, used to compute the assumed
// savings from tiering Standard data to IA and Glacier under a 30/90-day
// lifecycle rule.
const (
	s3StandardPerGiBMonth = 0.023
	s3IAPerGiBMonth       = 0.0125
	s3GlacierPerGiBMonth  = 0.004
)

// S3TieringSavings returns the assumed monthly savings of moving sizeGiB
// GiB of Standard-tier data to a 30-day-IA/90-day-Glacier lifecycle,
// modeled as 60% of the data settling in IA and 40% reaching Glacier.
func S3TieringSavings(sizeGiB float64) float64 {
	iaShare, glacierShare := 0.6, 0.4
	currentCost := sizeGiB * s3StandardPerGiBMonth
	tieredCost := sizeGiB*iaShare*s3IAPerGiBMonth + sizeGiB*glacierShare*s3GlacierPerGiBMonth
	savings := currentCost - tieredCost
	if savings < 0 {
		return 0
	}
	return savings
}

// DefaultS3TieringSizeGiB is the assumed bucket size used when a rule
// has no better estimate of actual bucket contents (§4.2.2 rule 9).
const DefaultS3TieringSizeGiB = 100

// lambdaGBSecondRate is the GB-second billing rate for Lambda compute.
const lambdaGBSecondRate = 0.0000166667

// LambdaMonthlyCost applies GB-second billing: memoryMB/1024 GB times
// avgDurationMs/1000 seconds times invocationsPerMonth, at the fixed
// per-GB-second rate. Free tier is not modeled.
func LambdaMonthlyCost(memoryMB int, avgDurationMs float64, invocationsPerMonth float64) float64 {
	gb := float64(memoryMB) / 1024
	seconds := avgDurationMs / 1000
	gbSeconds := gb * seconds * invocationsPerMonth
	return gbSeconds * lambdaGBSecondRate
}

// UnusedLambdaMonitoringOverhead is the assumed flat monthly cost
// attributed to a Lambda function with zero invocations (§4.2.2 rule 18).
const UnusedLambdaMonitoringOverhead = 0.50

// AssumedLogGroupMonthlyCost is the assumed flat monthly cost of a log
// group with no retention policy set (§4.2.2 rule 10).
const AssumedLogGroupMonthlyCost = 0.30

// AssumedVersioningMonthlyCost is the assumed flat monthly cost
// attributed to unbounded noncurrent S3 object versions (§4.2.2 rule 23).
const AssumedVersioningMonthlyCost = 1.15
