// Package ingest is the one-shot bootstrap path that populates a
// ResourceStore from a live AWS account: EC2 instances, RDS instances
// and S3 buckets, each with a 7-day CloudWatch average. It reuses the
// teacher's DescribeInstances+CloudWatch-averaging, worker-pool
// collector pattern, generalized to write directly into the engine's
// resource store instead of returning a standalone report. Detection,
// execution and drift never call into this package — once seeded, the
// store is the only source of truth (§1 Non-goals).
package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/pricing"
	"github.com/cloudtrim/engine/pkg/store"
)

// Clients bundles the AWS SDK clients a bootstrap collection needs.
type Clients struct {
	EC2        *ec2.Client
	RDS        *rds.Client
	S3         *s3.Client
	CloudWatch *cloudwatch.Client
}

// CollectInstances snapshots every running EC2 instance plus its 7-day
// average CPU into the instances table.
func CollectInstances(ctx context.Context, c Clients, rs store.ResourceStore, accountID, region string) (int, error) {
	resp, err := c.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{Name: aws.String("instance-state-name"), Values: []string{"running"}}},
	})
	if err != nil {
		return 0, err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)

	count := 0
	for _, reservation := range resp.Reservations {
		for _, raw := range reservation.Instances {
			avgCPU, err := cpuAverage(ctx, c.CloudWatch, *raw.InstanceId, start, end)
			if err != nil {
				log.Printf("ingest: unable to fetch CPU metrics for %s: %v", *raw.InstanceId, err)
			}
			instType := string(raw.InstanceType)
			inst := model.Instance{
				Header: model.Header{
					ID: *raw.InstanceId, AccountID: accountID, Region: region,
					Env: envFromTags(raw.Tags), Tags: tagMap(raw.Tags), UpdatedAt: end,
				},
				InstanceID:   *raw.InstanceId,
				InstanceType: instType,
				State:        string(raw.State.Name),
				HourlyCost:   pricing.InstanceMonthlyCost(instType) / pricing.HoursPerMonth,
				AvgCPU7d:     &avgCPU,
				LaunchTime:   aws.ToTime(raw.LaunchTime),
			}
			row, err := store.Encode(inst)
			if err != nil {
				return count, err
			}
			if _, err := rs.Insert(ctx, accountID, store.TableInstances, row); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func cpuAverage(ctx context.Context, cw *cloudwatch.Client, instanceID string, start, end time.Time) (float64, error) {
	resp, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/EC2"),
		MetricName: aws.String("CPUUtilization"),
		Dimensions: []cwtypes.Dimension{{Name: aws.String("InstanceId"), Value: aws.String(instanceID)}},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Datapoints) == 0 {
		return 0, nil
	}
	var sum float64
	for _, dp := range resp.Datapoints {
		sum += aws.ToFloat64(dp.Average)
	}
	return sum / float64(len(resp.Datapoints)), nil
}

// CollectRDS snapshots every RDS instance plus its 7-day average CPU
// and connection count into the rds_instances table, using a bounded
// worker pool the same way the teacher's ListRDSInstances does.
func CollectRDS(ctx context.Context, c Clients, rs store.ResourceStore, accountID, region string, maxInstances int) (int, error) {
	var all []rdstypes.DBInstance
	var marker *string
	for {
		resp, err := c.RDS.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker, MaxRecords: aws.Int32(100)})
		if err != nil {
			return 0, err
		}
		all = append(all, resp.DBInstances...)
		if resp.Marker == nil {
			break
		}
		marker = resp.Marker
	}
	if maxInstances > 0 && len(all) > maxInstances {
		all = all[:maxInstances]
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, 5)
	count := 0
	var firstErr error

	for _, db := range all {
		wg.Add(1)
		go func(db rdstypes.DBInstance) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cpu, _ := rdsMetricAverage(ctx, c.CloudWatch, *db.DBInstanceIdentifier, "CPUUtilization", start, end)
			conns, _ := rdsMetricAverage(ctx, c.CloudWatch, *db.DBInstanceIdentifier, "DatabaseConnections", start, end)

			r := model.RDSInstance{
				Header: model.Header{
					ID: *db.DBInstanceIdentifier, AccountID: accountID, Region: region,
					Env: "prod", UpdatedAt: end,
				},
				DBInstanceID:     *db.DBInstanceIdentifier,
				InstanceClass:    aws.ToString(db.DBInstanceClass),
				Engine:           aws.ToString(db.Engine),
				State:            aws.ToString(db.DBInstanceStatus),
				MultiAZ:          aws.ToBool(db.MultiAZ),
				AvgCPU7d:         &cpu,
				AvgConnections7d: &conns,
			}
			row, err := store.Encode(r)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if _, err := rs.Insert(ctx, accountID, store.TableRDSInstances, row); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			count++
			mu.Unlock()
		}(db)
	}
	wg.Wait()
	return count, firstErr
}

func rdsMetricAverage(ctx context.Context, cw *cloudwatch.Client, dbID, metric string, start, end time.Time) (float64, error) {
	resp, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/RDS"),
		MetricName: aws.String(metric),
		Dimensions: []cwtypes.Dimension{{Name: aws.String("DBInstanceIdentifier"), Value: aws.String(dbID)}},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Datapoints) == 0 {
		return 0, nil
	}
	var sum float64
	for _, dp := range resp.Datapoints {
		sum += aws.ToFloat64(dp.Average)
	}
	return sum / float64(len(resp.Datapoints)), nil
}

// CollectBuckets snapshots every S3 bucket's total size into the
// s3_buckets table, using a bounded worker pool the same way the
// teacher's ListBuckets does.
func CollectBuckets(ctx context.Context, c Clients, rs store.ResourceStore, accountID, region string, maxBuckets int) (int, error) {
	resp, err := c.S3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return 0, err
	}
	buckets := resp.Buckets
	if maxBuckets > 0 && len(buckets) > maxBuckets {
		buckets = buckets[:maxBuckets]
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, 5)
	count := 0
	var firstErr error

	for _, b := range buckets {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sizeGiB := bucketSizeGiB(ctx, c.CloudWatch, name)
			bucket := model.S3Bucket{
				Header:      model.Header{ID: name, AccountID: accountID, Region: region, Env: "prod"},
				Name:        name,
				SizeGiB:     sizeGiB,
				StandardGiB: sizeGiB,
			}
			row, err := store.Encode(bucket)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if _, err := rs.Insert(ctx, accountID, store.TableS3Buckets, row); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			count++
			mu.Unlock()
		}(aws.ToString(b.Name))
	}
	wg.Wait()
	return count, firstErr
}

func bucketSizeGiB(ctx context.Context, cw *cloudwatch.Client, bucket string) float64 {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -2)
	resp, err := cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/S3"),
		MetricName: aws.String("BucketSizeBytes"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("BucketName"), Value: aws.String(bucket)},
			{Name: aws.String("StorageType"), Value: aws.String("StandardStorage")},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil || len(resp.Datapoints) == 0 {
		return 0
	}
	latest := resp.Datapoints[len(resp.Datapoints)-1]
	return aws.ToFloat64(latest.Average) / (1024 * 1024 * 1024)
}

func tagMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func envFromTags(tags []ec2types.Tag) string {
	for _, t := range tags {
		key := aws.ToString(t.Key)
		if key == "Env" || key == "env" || key == "Environment" {
			return aws.ToString(t.Value)
		}
	}
	return "prod"
}
