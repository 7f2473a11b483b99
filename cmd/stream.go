package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"snowstream/internal/config"
	"snowstream/internal/generator"
	"snowstream/internal/ingest"
	"snowstream/internal/reconcile"
	"snowstream/internal/snowflake"
	"snowstream/internal/stream"
	"snowstream/internal/ui"
	"snowstream/pkg/errors"
)

var skipReconcile bool

var streamCmd = &cobra.Command{
	Use:   "stream <total_orders> <parallelism>",
	Short: "Generate and stream synthetic orders into the warehouse",
	Long: "Generates total_orders synthetic orders with their line items and\n" +
		"streams them through parallelism independent channel pairs, each\n" +
		"scoped to a disjoint customer-id range. After all workers finish the\n" +
		"tables are reconciled unless --skip-reconcile is set.",
	Args: cobra.ExactArgs(2),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().BoolVar(&skipReconcile, "skip-reconcile", false,
		"skip the reconciliation pass after streaming")
	rootCmd.AddCommand(streamCmd)
}

var orderColumns = []string{
	"order_id", "customer_id", "order_date", "order_status",
	"total_amount", "discount_percent", "shipping_cost",
}

var itemColumns = []string{
	"order_item_id", "order_id", "product_id", "product_name",
	"product_category", "quantity", "unit_price", "line_total",
}

// targetTables resolves the physical table pair for the configured schema.
// The staging schema carries suffixed table names.
func targetTables(schema string) (orders, items string) {
	if strings.EqualFold(schema, "STAGING") {
		return "ORDERS_STAGING", "ORDER_ITEMS_STAGING"
	}
	return "ORDERS", "ORDER_ITEMS"
}

func runStream(cmd *cobra.Command, args []string) error {
	totalOrders, err := strconv.Atoi(args[0])
	if err != nil || totalOrders <= 0 {
		return errors.ValidationError("total_orders", args[0], "must be a positive integer")
	}
	instances, err := strconv.Atoi(args[1])
	if err != nil || instances <= 0 {
		return errors.ValidationError("parallelism", args[1], "must be a positive integer")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logrus.NewEntry(logrus.StandardLogger())

	ui.ShowHeader("SnowStream Order Ingestion")
	ui.ShowInfo(fmt.Sprintf("streaming %d orders across %d instance(s)", totalOrders, instances))

	svc := snowflake.NewService(cfg.Profile)
	if err := svc.Connect(ctx); err != nil {
		return err
	}
	defer svc.Close()
	ui.ShowSuccess(fmt.Sprintf("connected to account %s as %s",
		cfg.Profile.Account, cfg.Profile.User))

	ordersTable, itemsTable := targetTables(cfg.Profile.Schema)
	log.WithFields(logrus.Fields{
		"orders_pipe": cfg.OrdersPipe(),
		"items_pipe":  cfg.ItemsPipe(),
		"orders":      ordersTable,
		"order_items": itemsTable,
	}).Info("ingestion targets resolved")

	factory := func(instance int) (ingest.Client, ingest.Client, error) {
		orders := ingest.NewSQLClient(svc.DB(),
			cfg.Profile.Database, cfg.Profile.Schema, ordersTable, orderColumns)
		items := ingest.NewSQLClient(svc.DB(),
			cfg.Profile.Database, cfg.Profile.Schema, itemsTable, itemColumns)
		return orders, items, nil
	}

	if instances == 1 {
		if err := runSingleInstance(ctx, cfg, svc, factory, totalOrders, log); err != nil {
			return err
		}
	} else {
		orch := stream.NewOrchestrator(cfg, factory, svc.QueryMaxCustomerID, log)
		report, err := orch.Run(ctx, totalOrders, instances)
		if err != nil {
			return err
		}
		ui.RenderRunReport(report)
		if report.Failed() {
			return errors.Newf(errors.ErrCodeIngestFailed,
				"%d of %d instance(s) failed", report.FailedInstances, instances)
		}
	}

	// Let the backend settle the last appends before measuring final state.
	log.WithField("wait", cfg.FlushWait().String()).Info("waiting for final flush")
	if err := errors.Sleep(ctx, cfg.FlushWait()); err != nil {
		return err
	}

	if skipReconcile {
		ui.ShowWarning("reconciliation skipped; run 'snowstream reconcile' to verify consistency")
		return nil
	}

	// A reconciliation failure does not undo the streamed data; it means the
	// tables need manual follow-up.
	if err := runReconciliation(ctx, cfg, svc, log); err != nil {
		log.WithError(err).Error("reconciliation failed, tables require manual follow-up")
		return err
	}
	return nil
}

// runSingleInstance streams every order through one unsuffixed channel pair
// and reports the final committed offsets.
func runSingleInstance(ctx context.Context, cfg *config.Config, svc *snowflake.Service, factory stream.ClientFactory, totalOrders int, log *logrus.Entry) error {
	maxID, err := svc.QueryMaxCustomerID(ctx)
	if err != nil {
		return err
	}

	ordersClient, itemsClient, err := factory(0)
	if err != nil {
		return err
	}

	mgr, err := stream.NewManager(ctx, cfg, ordersClient, itemsClient, -1, log)
	if err != nil {
		return err
	}
	defer mgr.Close()

	gen := generator.NewSeeded(time.Now().UnixNano())
	driver := stream.NewDriver(gen, mgr, stream.DriverOptionsFromConfig(cfg), 1, maxID, log)

	processed, err := driver.Run(ctx, totalOrders)
	if err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("streamed %d orders", processed))

	if offset, err := mgr.LatestOrderOffset(ctx); err == nil {
		ui.ShowInfo("orders channel committed offset: " + offset)
	}
	if offset, err := mgr.LatestOrderItemOffset(ctx); err == nil {
		ui.ShowInfo("order items channel committed offset: " + offset)
	}
	return nil
}

func runReconciliation(ctx context.Context, cfg *config.Config, svc *snowflake.Service, log *logrus.Entry) error {
	ui.ShowHeader("Reconciliation")

	r := reconcile.New(svc.DB(), cfg.Profile.Database, cfg.Profile.Schema, log)
	stats, err := r.Run(ctx)
	if err != nil {
		return err
	}
	ui.RenderReconciliationReport(stats)
	return nil
}
