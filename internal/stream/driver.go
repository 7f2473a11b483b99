package stream

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"snowstream/internal/config"
	"snowstream/internal/generator"
	"snowstream/pkg/errors"
	"snowstream/pkg/models"
)

// DriverOptions bound the batch loop and its outer retry tier.
type DriverOptions struct {
	BatchSize int
	// InsertPause is the drain pause between the order insert and the
	// dependent item insert. It reduces observed backpressure on the
	// second call; correctness does not depend on it.
	InsertPause time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// DriverOptionsFromConfig reads the driver tuning keys.
func DriverOptionsFromConfig(cfg *config.Config) DriverOptions {
	return DriverOptions{
		BatchSize:   cfg.BatchSize(),
		InsertPause: cfg.InsertPause(),
		MaxRetries:  cfg.BatchMaxRetries(),
		RetryDelay:  cfg.BatchRetryDelay(),
	}
}

// Driver streams a target number of orders through the two-table pipeline
// in fixed-size batches, scoped to one customer-id partition.
type Driver struct {
	gen       *generator.Generator
	mgr       *Manager
	opts      DriverOptions
	custStart int
	custEnd   int
	log       *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver for one partition.
func NewDriver(gen *generator.Generator, mgr *Manager, opts DriverOptions, custStart, custEnd int, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{
		gen:       gen,
		mgr:       mgr,
		opts:      opts,
		custStart: custStart,
		custEnd:   custEnd,
		log:       log.WithField("customer_range", [2]int{custStart, custEnd}),
		sleep:     errors.Sleep,
	}
}

// Run streams numOrders orders. It returns the number of orders fully
// committed (both tables) before returning; on error the count reflects
// progress up to the failed batch. A batch is generated entirely in memory
// before any I/O, bounding worst-case retry cost to one batch.
func (d *Driver) Run(ctx context.Context, numOrders int) (int, error) {
	if numOrders < 0 {
		return 0, errors.ValidationError("num_orders", numOrders, "must be non-negative")
	}

	d.log.WithFields(logrus.Fields{
		"orders":     numOrders,
		"batch_size": d.opts.BatchSize,
	}).Info("starting partitioned streaming")

	processed := 0
	for processed < numOrders {
		batchSize := d.opts.BatchSize
		if remaining := numOrders - processed; remaining < batchSize {
			batchSize = remaining
		}

		orders, items, err := d.generateBatch(batchSize)
		if err != nil {
			return processed, err
		}

		if err := d.insertWithRetry(ctx, "orders", func() error {
			return d.mgr.InsertOrders(ctx, orders)
		}); err != nil {
			return processed, errors.Wrap(err, errors.ErrCodeIngestFailed,
				"order batch failed").WithContext("position", processed)
		}

		// Let the receiver drain before the dependent item batch.
		if err := d.sleep(ctx, d.opts.InsertPause); err != nil {
			return processed, err
		}

		if err := d.insertWithRetry(ctx, "order_items", func() error {
			return d.mgr.InsertOrderItems(ctx, items)
		}); err != nil {
			// The orders committed but their items never will: a known,
			// accepted cross-table atomicity violation. Reconciliation
			// removes the orphaned orders afterwards; the explicit log
			// line is the audit trail it relies on.
			d.log.WithFields(logrus.Fields{
				"condition":      "atomicity_violation",
				"orders_written": len(orders),
				"items_lost":     len(items),
			}).Warn("orders committed but order_items failed; reconciliation will clean up")

			violation := errors.Wrap(err, errors.ErrCodeAtomicityViolation,
				"order batch committed without its items")
			return processed, violation.WithContext("position", processed)
		}

		processed += batchSize
		d.log.WithFields(logrus.Fields{
			"processed": processed,
			"total":     numOrders,
			"items":     len(items),
		}).Info("batch committed")
	}

	d.log.WithField("orders", processed).Info("partition streaming complete")
	return processed, nil
}

// generateBatch builds one batch of orders and all of their items in memory.
func (d *Driver) generateBatch(size int) ([]models.Order, []models.OrderItem, error) {
	orders := make([]models.Order, 0, size)
	var items []models.OrderItem

	for i := 0; i < size; i++ {
		customerID, err := d.gen.RandomCustomerIDInRange(d.custStart, d.custEnd)
		if err != nil {
			return nil, nil, err
		}

		order := d.gen.GenerateOrder(customerID)
		orders = append(orders, order)
		items = append(items, d.gen.GenerateOrderItems(order.OrderID, d.gen.RandomItemCount())...)
	}

	return orders, items, nil
}

// insertWithRetry is the outer retry tier: it retries total call failures
// (including channel-layer backpressure exhaustion) with linear backoff,
// independent of the wrapper's inner exponential tier. Hard ingestion
// errors are not retried at this tier either.
func (d *Driver) insertWithRetry(ctx context.Context, what string, insert func() error) error {
	attempts := d.opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := insert()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.HasCode(err, errors.ErrCodeIngestFailed) {
			// Schema/auth class failure: will not self-resolve.
			return err
		}
		if attempt == attempts {
			break
		}

		d.log.WithFields(logrus.Fields{
			"table":   what,
			"attempt": attempt,
			"max":     attempts,
		}).WithError(err).Warn("insert failed, retrying")

		if err := d.sleep(ctx, time.Duration(attempt)*d.opts.RetryDelay); err != nil {
			return err
		}
	}

	d.log.WithFields(logrus.Fields{
		"table":    what,
		"attempts": attempts,
	}).WithError(lastErr).Error("insert failed after all retries")

	return errors.Wrap(lastErr, errors.ErrCodeRetriesExhausted, "insert retries exhausted").
		WithContext("table", what)
}
