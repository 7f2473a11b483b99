package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"snowstream/internal/generator"
	"snowstream/internal/snowflake"
	"snowstream/internal/ui"
	"snowstream/pkg/errors"
	"snowstream/pkg/models"
)

// seedInsertBatch bounds the multi-row INSERT size for customer seeding.
const seedInsertBatch = 1000

var seedCmd = &cobra.Command{
	Use:   "seed <customer_count>",
	Short: "Seed the CUSTOMERS table with synthetic customers",
	Long: "Inserts customer_count synthetic customers with sequential ids\n" +
		"starting at 1. Order streaming requires a non-empty CUSTOMERS table;\n" +
		"run this once before the first 'snowstream stream'.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil || count <= 0 {
			return errors.ValidationError("customer_count", args[0], "must be a positive integer")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc := snowflake.NewService(cfg.Profile)
		if err := svc.Connect(ctx); err != nil {
			return err
		}
		defer svc.Close()

		ui.ShowHeader("Customer Seeding")
		gen := generator.NewSeeded(time.Now().UnixNano())

		for start := 1; start <= count; start += seedInsertBatch {
			end := start + seedInsertBatch - 1
			if end > count {
				end = count
			}
			customers := make([]models.Customer, 0, end-start+1)
			for id := start; id <= end; id++ {
				customers = append(customers, gen.GenerateCustomer(id))
			}
			if err := svc.InsertCustomers(ctx, customers); err != nil {
				return err
			}
		}

		ui.ShowSuccess(fmt.Sprintf("seeded %d customers", count))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
