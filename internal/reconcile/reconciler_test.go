package reconcile

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T, schema string) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, "AUTOMATED_INTELLIGENCE", schema, nil), mock
}

// Mirrors the canonical partial-failure scenario: orders {O1,O2,O3} with a
// later duplicate of O1, items referencing {O1,O3,O3} plus one orphaned
// item referencing the absent O4. After the pass: O2 gone (orphaned order),
// the O4 item gone (orphaned item), the later O1 row gone (duplicate),
// leaving 2 orders and 3 items.
func TestRunRepairsAllCategories(t *testing.T) {
	r, mock := newTestReconciler(t, "RAW")

	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS\s+WHERE order_id IN \(\s*SELECT DISTINCT o\.order_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS\s+WHERE order_id IN \(\s*SELECT DISTINCT oi\.order_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) - COUNT\(DISTINCT order_id\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS`).
		WillReturnRows(sqlmock.NewRows([]string{"dup"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS\s+WHERE \(order_id, order_date, total_amount\) IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(3))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.OrphanedOrdersFound)
	assert.Equal(t, int64(1), stats.OrphanedOrdersDeleted)
	assert.Equal(t, int64(1), stats.OrphanedItemsFound)
	assert.Equal(t, int64(1), stats.OrphanedItemsDeleted)
	assert.Equal(t, int64(1), stats.DuplicateOrdersFound)
	assert.Equal(t, int64(1), stats.DuplicateOrdersDeleted)
	assert.Equal(t, int64(2), stats.FinalOrdersCount)
	assert.Equal(t, int64(3), stats.FinalItemsCount)
	assert.False(t, stats.Clean())

	require.NoError(t, mock.ExpectationsWereMet())
}

// A second pass over already-consistent tables finds nothing; the duplicate
// delete statement must not run at all when the count is zero.
func TestRunIdempotentOnCleanTables(t *testing.T) {
	r, mock := newTestReconciler(t, "RAW")

	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) - COUNT\(DISTINCT order_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"dup"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(3))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Clean())
	assert.Zero(t, stats.OrphanedOrdersFound)
	assert.Zero(t, stats.OrphanedItemsFound)
	assert.Zero(t, stats.DuplicateOrdersFound)
	assert.Zero(t, stats.DuplicateOrdersDeleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStagingSchemaUsesSuffixedTables(t *testing.T) {
	r, mock := newTestReconciler(t, "STAGING")

	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.STAGING\.ORDERS_STAGING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.STAGING\.ORDER_ITEMS_STAGING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) - COUNT\(DISTINCT order_id\) FROM AUTOMATED_INTELLIGENCE\.STAGING\.ORDERS_STAGING`).
		WillReturnRows(sqlmock.NewRows([]string{"dup"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.STAGING\.ORDERS_STAGING`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.STAGING\.ORDER_ITEMS_STAGING`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(0))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSurfacesDeleteFailure(t *testing.T) {
	r, mock := newTestReconciler(t, "RAW")

	mock.ExpectExec(`DELETE FROM`).
		WillReturnError(assert.AnError)

	stats, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, stats)
}

func TestDuplicateDeleteOrdering(t *testing.T) {
	// The duplicate count runs only after both orphan deletes, so counts
	// are not polluted by rows already scheduled for removal.
	r, mock := newTestReconciler(t, "RAW")

	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS\s+WHERE order_id IN`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) - COUNT\(DISTINCT order_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"dup"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDERS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(10))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM AUTOMATED_INTELLIGENCE\.RAW\.ORDER_ITEMS`).
		WillReturnRows(sqlmock.NewRows([]string{"c"}).AddRow(40))

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.OrphanedOrdersDeleted)
	assert.Equal(t, int64(2), stats.OrphanedItemsDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
