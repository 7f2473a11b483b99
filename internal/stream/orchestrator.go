package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"snowstream/internal/config"
	"snowstream/internal/generator"
	"snowstream/internal/ingest"
	"snowstream/pkg/errors"
)

// Partition is a static assignment of a contiguous customer-id sub-range
// and an order-count share to one worker. Created once at orchestration
// start, immutable afterwards.
type Partition struct {
	Instance      int
	Orders        int
	CustomerStart int
	CustomerEnd   int
}

// PlanPartitions splits totalOrders and the customer-id space
// [1, maxCustomerID] into n contiguous, gapless, non-overlapping
// partitions. The final partition absorbs both remainders, so order shares
// always sum to totalOrders exactly and the ranges cover [1, maxCustomerID]
// with no gaps.
func PlanPartitions(totalOrders, maxCustomerID, n int) ([]Partition, error) {
	if totalOrders <= 0 {
		return nil, errors.ValidationError("total_orders", totalOrders, "must be positive")
	}
	if maxCustomerID <= 0 {
		return nil, errors.ValidationError("max_customer_id", maxCustomerID, "must be positive")
	}
	if n <= 0 {
		return nil, errors.ValidationError("instances", n, "must be positive")
	}
	if n > maxCustomerID {
		return nil, errors.ValidationError("instances", n,
			"cannot exceed the number of customers")
	}

	ordersPer := totalOrders / n
	rangeSize := maxCustomerID / n

	partitions := make([]Partition, n)
	for i := 0; i < n; i++ {
		p := Partition{
			Instance:      i,
			Orders:        ordersPer,
			CustomerStart: i*rangeSize + 1,
			CustomerEnd:   (i + 1) * rangeSize,
		}
		if i == n-1 {
			p.Orders = totalOrders - ordersPer*(n-1)
			p.CustomerEnd = maxCustomerID
		}
		partitions[i] = p
	}
	return partitions, nil
}

// InstanceResult is the terminal state of one worker.
type InstanceResult struct {
	InstanceID      int
	OrdersGenerated int
	Duration        time.Duration
	Success         bool
	Err             error
}

// RunReport aggregates all workers' terminal states.
type RunReport struct {
	TotalOrders         int
	SuccessfulInstances int
	FailedInstances     int
	Results             []InstanceResult
}

// Failed reports whether any partition failed. Successful partitions'
// data is never rolled back; reconciliation is the safety net.
func (r *RunReport) Failed() bool {
	return r.FailedInstances > 0
}

// ClientFactory builds the channel-client pair for one worker instance.
type ClientFactory func(instanceID int) (orders ingest.Client, items ingest.Client, err error)

// Orchestrator fans one logical ingestion job out across independent
// workers, each scoped to its own partition with its own channel pair.
type Orchestrator struct {
	cfg           *config.Config
	factory       ClientFactory
	maxCustomerID func(ctx context.Context) (int, error)
	log           *logrus.Entry

	// seed lets tests make workers deterministic.
	seed func(instance int) int64

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. maxCustomerID queries the
// source-of-truth customer table; it runs exactly once per Run.
func NewOrchestrator(cfg *config.Config, factory ClientFactory, maxCustomerID func(ctx context.Context) (int, error), log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		cfg:           cfg,
		factory:       factory,
		maxCustomerID: maxCustomerID,
		log:           log,
		seed: func(instance int) int64 {
			return time.Now().UnixNano() + int64(instance)
		},
		sleep: errors.Sleep,
	}
}

// Run executes the whole job: plan partitions, run one worker per
// partition, join all, aggregate. Workers are never cancelled when a
// sibling fails; their committed data stands regardless. The returned
// report is non-nil whenever planning succeeded, even if workers failed.
func (o *Orchestrator) Run(ctx context.Context, totalOrders, instances int) (*RunReport, error) {
	maxID, err := o.maxCustomerID(ctx)
	if err != nil {
		return nil, err
	}
	o.log.WithField("max_customer_id", maxID).Info("customer key space discovered")

	partitions, err := PlanPartitions(totalOrders, maxID, instances)
	if err != nil {
		return nil, err
	}

	for _, p := range partitions {
		o.log.WithFields(logrus.Fields{
			"instance":       p.Instance,
			"orders":         p.Orders,
			"customer_start": p.CustomerStart,
			"customer_end":   p.CustomerEnd,
		}).Info("partition planned")
	}

	results := make([]InstanceResult, len(partitions))
	var wg sync.WaitGroup
	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p Partition) {
			defer wg.Done()
			results[i] = o.runInstance(ctx, p)
		}(i, p)
	}

	o.log.WithField("instances", instances).Info("all instances submitted, waiting for completion")
	wg.Wait()

	report := &RunReport{Results: results}
	for _, r := range results {
		if r.Success {
			report.SuccessfulInstances++
			report.TotalOrders += r.OrdersGenerated
			o.log.WithFields(logrus.Fields{
				"instance": r.InstanceID,
				"orders":   r.OrdersGenerated,
				"duration": r.Duration.String(),
			}).Info("instance completed")
		} else {
			report.FailedInstances++
			o.log.WithFields(logrus.Fields{
				"instance": r.InstanceID,
				"orders":   r.OrdersGenerated,
			}).WithError(r.Err).Error("instance failed")
		}
	}

	o.log.WithFields(logrus.Fields{
		"successful": report.SuccessfulInstances,
		"failed":     report.FailedInstances,
		"orders":     report.TotalOrders,
	}).Info("parallel streaming completed")

	return report, nil
}

// runInstance runs one worker to its terminal state. Failures are caught
// at this boundary and turned into a structured result; they never
// propagate to sibling partitions.
func (o *Orchestrator) runInstance(ctx context.Context, p Partition) InstanceResult {
	start := time.Now()
	result := InstanceResult{InstanceID: p.Instance}

	ordersClient, itemsClient, err := o.factory(p.Instance)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	mgr, err := NewManager(ctx, o.cfg, ordersClient, itemsClient, p.Instance, o.log)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	defer mgr.Close()

	gen := generator.New(newRand(o.seed(p.Instance)))
	driver := NewDriver(gen, mgr, DriverOptionsFromConfig(o.cfg),
		p.CustomerStart, p.CustomerEnd, o.log.WithField("instance", p.Instance))
	driver.sleep = o.sleep

	processed, err := driver.Run(ctx, p.Orders)
	result.OrdersGenerated = processed
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	// Give the backend a moment to settle the last batch before the
	// channel pair closes.
	if err := o.sleep(ctx, o.cfg.WorkerFlushWait()); err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}
