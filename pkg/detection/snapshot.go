package detection

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudtrim/engine/pkg/model"
	"github.com/cloudtrim/engine/pkg/store"
)

// fetchInventory fans the eleven resource tables out across concurrent
// reads and waits for all of them, the same goroutine+WaitGroup+Mutex
// shape the teacher's ScanResources uses to run its scanners
// concurrently (pkg/scanners.go). No per-rule queries follow; every
// scenario evaluates against this single in-memory snapshot.
func fetchInventory(ctx context.Context, st store.ResourceStore, accountID string) (model.Inventory, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inv      model.Inventory
		firstErr error
	)

	fetch := func(table store.Table, assign func([]store.Row) error) {
		defer wg.Done()
		rows, err := st.SelectAll(ctx, accountID, table)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch %s: %w", table, err)
			}
			return
		}
		if err := assign(rows); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode %s: %w", table, err)
			}
		}
	}

	wg.Add(11)
	go fetch(store.TableInstances, func(rows []store.Row) (err error) {
		inv.Instances, err = store.DecodeAll[model.Instance](rows)
		return
	})
	go fetch(store.TableAutoscalingGroups, func(rows []store.Row) (err error) {
		inv.AutoscalingGroups, err = store.DecodeAll[model.AutoscalingGroup](rows)
		return
	})
	go fetch(store.TableRDSInstances, func(rows []store.Row) (err error) {
		inv.RDSInstances, err = store.DecodeAll[model.RDSInstance](rows)
		return
	})
	go fetch(store.TableCacheClusters, func(rows []store.Row) (err error) {
		inv.CacheClusters, err = store.DecodeAll[model.CacheCluster](rows)
		return
	})
	go fetch(store.TableLoadBalancers, func(rows []store.Row) (err error) {
		inv.LoadBalancers, err = store.DecodeAll[model.LoadBalancer](rows)
		return
	})
	go fetch(store.TableLambdaFunctions, func(rows []store.Row) (err error) {
		inv.LambdaFunctions, err = store.DecodeAll[model.LambdaFunction](rows)
		return
	})
	go fetch(store.TableVolumes, func(rows []store.Row) (err error) {
		inv.Volumes, err = store.DecodeAll[model.Volume](rows)
		return
	})
	go fetch(store.TableSnapshots, func(rows []store.Row) (err error) {
		inv.Snapshots, err = store.DecodeAll[model.Snapshot](rows)
		return
	})
	go fetch(store.TableS3Buckets, func(rows []store.Row) (err error) {
		inv.S3Buckets, err = store.DecodeAll[model.S3Bucket](rows)
		return
	})
	go fetch(store.TableLogGroups, func(rows []store.Row) (err error) {
		inv.LogGroups, err = store.DecodeAll[model.LogGroup](rows)
		return
	})
	go fetch(store.TableElasticIPs, func(rows []store.Row) (err error) {
		inv.ElasticIPs, err = store.DecodeAll[model.ElasticIP](rows)
		return
	})
	wg.Wait()

	if ctx.Err() != nil {
		return model.Inventory{}, ctx.Err()
	}
	if firstErr != nil {
		return model.Inventory{}, firstErr
	}
	return inv, nil
}
