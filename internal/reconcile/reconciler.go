// Package reconcile repairs the cross-table inconsistencies that
// non-transactional concurrent ingestion can leave behind: orphaned
// orders, orphaned order items and duplicate orders.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"snowstream/pkg/errors"
)

// Stats is the audit output of one reconciliation pass. Any non-zero
// "found" count means the upstream pipeline experienced a partial failure,
// even though the data is consistent afterwards.
type Stats struct {
	OrphanedOrdersFound    int64
	OrphanedOrdersDeleted  int64
	OrphanedItemsFound     int64
	OrphanedItemsDeleted   int64
	DuplicateOrdersFound   int64
	DuplicateOrdersDeleted int64
	FinalOrdersCount       int64
	FinalItemsCount        int64
}

// Clean reports whether the pass found nothing to repair.
func (s *Stats) Clean() bool {
	return s.OrphanedOrdersFound == 0 &&
		s.OrphanedItemsFound == 0 &&
		s.DuplicateOrdersFound == 0
}

// Reconciler runs detection and cleanup against the settled tables. It must
// only run after all writers have quiesced; running it concurrently with
// active ingestion would delete in-flight rows.
type Reconciler struct {
	db       *sql.DB
	database string
	schema   string
	log      *logrus.Entry
}

// New creates a reconciler for the given database and schema.
func New(db *sql.DB, database, schema string, log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{db: db, database: database, schema: schema, log: log}
}

// tableNames resolves the physical table pair for the schema. The staging
// schema carries suffixed table names.
func (r *Reconciler) tableNames() (orders, items string) {
	if strings.EqualFold(r.schema, "STAGING") {
		return "ORDERS_STAGING", "ORDER_ITEMS_STAGING"
	}
	return "ORDERS", "ORDER_ITEMS"
}

func (r *Reconciler) qualify(table string) string {
	return fmt.Sprintf("%s.%s.%s", r.database, r.schema, table)
}

// Run executes the cleanup steps in strict order: orphaned orders, orphaned
// items, duplicate orders, final counts. Orphan cleanup must precede
// duplicate cleanup so duplicate counts are not polluted by rows about to
// be removed anyway; each delete count comes from the statement that
// performed the delete, never a separate count query.
func (r *Reconciler) Run(ctx context.Context) (*Stats, error) {
	r.log.Info("starting reconciliation and cleanup")

	ordersTable, itemsTable := r.tableNames()
	orders := r.qualify(ordersTable)
	items := r.qualify(itemsTable)
	stats := &Stats{}

	deleted, err := r.deleteOrphanedOrders(ctx, orders, items)
	if err != nil {
		return nil, err
	}
	stats.OrphanedOrdersFound = deleted
	stats.OrphanedOrdersDeleted = deleted
	r.logCategory("orphaned orders", deleted)

	deleted, err = r.deleteOrphanedItems(ctx, orders, items)
	if err != nil {
		return nil, err
	}
	stats.OrphanedItemsFound = deleted
	stats.OrphanedItemsDeleted = deleted
	r.logCategory("orphaned order_items", deleted)

	found, deleted, err := r.deduplicateOrders(ctx, orders)
	if err != nil {
		return nil, err
	}
	stats.DuplicateOrdersFound = found
	stats.DuplicateOrdersDeleted = deleted
	r.logCategory("duplicate orders", found)

	if stats.FinalOrdersCount, err = r.countRows(ctx, orders); err != nil {
		return nil, err
	}
	if stats.FinalItemsCount, err = r.countRows(ctx, items); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"orphaned_orders":  stats.OrphanedOrdersDeleted,
		"orphaned_items":   stats.OrphanedItemsDeleted,
		"duplicate_orders": stats.DuplicateOrdersDeleted,
		"final_orders":     stats.FinalOrdersCount,
		"final_items":      stats.FinalItemsCount,
	}).Info("reconciliation completed")

	return stats, nil
}

// deleteOrphanedOrders removes orders with no surviving line items. An
// order with zero items is unusable downstream and cheaper to delete than
// to backfill.
func (r *Reconciler) deleteOrphanedOrders(ctx context.Context, orders, items string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %[1]s
WHERE order_id IN (
    SELECT DISTINCT o.order_id
    FROM %[1]s o
    LEFT JOIN %[2]s oi ON o.order_id = oi.order_id
    WHERE oi.order_id IS NULL
)`, orders, items)

	return r.execDelete(ctx, query, "orphaned orders")
}

// deleteOrphanedItems removes items whose parent order never committed.
func (r *Reconciler) deleteOrphanedItems(ctx context.Context, orders, items string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %[1]s
WHERE order_id IN (
    SELECT DISTINCT oi.order_id
    FROM %[1]s oi
    LEFT JOIN %[2]s o ON oi.order_id = o.order_id
    WHERE o.order_id IS NULL
)`, items, orders)

	return r.execDelete(ctx, query, "orphaned order_items")
}

// deduplicateOrders counts duplicate order ids, then keeps exactly one row
// per order_id (the earliest order_date) and deletes the rest. Duplicates
// arise from retried appends whose earlier attempt actually committed
// upstream before the retry fired.
func (r *Reconciler) deduplicateOrders(ctx context.Context, orders string) (found, deleted int64, err error) {
	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) - COUNT(DISTINCT order_id) FROM %s", orders)

	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&found); err != nil {
		return 0, 0, errors.SQLError("failed to count duplicate orders", countQuery, err)
	}
	if found == 0 {
		return 0, 0, nil
	}

	r.log.WithField("duplicates", found).Warn("duplicate orders detected, deduplicating")

	deleteQuery := fmt.Sprintf(`DELETE FROM %[1]s
WHERE (order_id, order_date, total_amount) IN (
    SELECT order_id, order_date, total_amount
    FROM (
        SELECT order_id, order_date, total_amount,
               ROW_NUMBER() OVER (PARTITION BY order_id ORDER BY order_date) AS rn
        FROM %[1]s
    )
    WHERE rn > 1
)`, orders)

	deleted, err = r.execDelete(ctx, deleteQuery, "duplicate orders")
	if err != nil {
		return 0, 0, err
	}
	return found, deleted, nil
}

func (r *Reconciler) execDelete(ctx context.Context, query, what string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeReconciliation,
			fmt.Sprintf("failed to delete %s", what))
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeReconciliation,
			fmt.Sprintf("failed to read affected rows for %s", what))
	}
	return deleted, nil
}

func (r *Reconciler) countRows(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, errors.SQLError("failed to count rows", query, err)
	}
	return count, nil
}

func (r *Reconciler) logCategory(what string, n int64) {
	if n > 0 {
		r.log.WithField("count", n).Warnf("found and deleted %s", what)
	} else {
		r.log.Infof("no %s found", what)
	}
}
