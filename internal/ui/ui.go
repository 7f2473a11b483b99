// Package ui renders terminal output for the streaming commands.
package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"snowstream/internal/reconcile"
	"snowstream/internal/stream"
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
)

// ShowHeader displays a boxed section header.
func ShowHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2
	if padding < 0 {
		padding = 0
	}

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		bold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowInfo displays an informational message.
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", info("i"), message)
}

// ShowSuccess displays a success message.
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", success("✓"), message)
}

// ShowWarning displays a warning message.
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", warning("!"), message)
}

// ShowError displays an error message.
func ShowError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", failure("✗"), err)
}

// RenderRunReport prints the per-instance outcome table and the aggregate
// line for one parallel streaming run.
func RenderRunReport(report *stream.RunReport) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Instance", "Orders", "Duration", "Status"})
	table.SetBorder(false)

	for _, r := range report.Results {
		status := success("OK")
		if !r.Success {
			status = failure("FAILED")
		}
		table.Append([]string{
			strconv.Itoa(r.InstanceID),
			strconv.Itoa(r.OrdersGenerated),
			r.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	table.Render()

	summary := fmt.Sprintf("instances: %d succeeded, %d failed; orders streamed: %d",
		report.SuccessfulInstances, report.FailedInstances, report.TotalOrders)
	if report.Failed() {
		ShowWarning(summary)
	} else {
		ShowSuccess(summary)
	}
}

// RenderReconciliationReport prints the found/deleted table and the final
// row counts for one reconciliation pass.
func RenderReconciliationReport(stats *reconcile.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Found", "Deleted"})
	table.SetBorder(false)

	table.Append([]string{"Orphaned orders",
		formatCount(stats.OrphanedOrdersFound), formatCount(stats.OrphanedOrdersDeleted)})
	table.Append([]string{"Orphaned order items",
		formatCount(stats.OrphanedItemsFound), formatCount(stats.OrphanedItemsDeleted)})
	table.Append([]string{"Duplicate orders",
		formatCount(stats.DuplicateOrdersFound), formatCount(stats.DuplicateOrdersDeleted)})
	table.Render()

	ShowInfo(fmt.Sprintf("final counts: %s orders, %s order items",
		formatCount(stats.FinalOrdersCount), formatCount(stats.FinalItemsCount)))

	if stats.Clean() {
		ShowSuccess("data is consistent, no issues found")
	} else {
		ShowWarning("inconsistencies detected and cleaned; upstream ingestion had partial failures")
	}
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
