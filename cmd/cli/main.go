package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pmaffi/jira-flow-metrics/internal/collector"
	"github.com/pmaffi/jira-flow-metrics/internal/config"
	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	"github.com/pmaffi/jira-flow-metrics/internal/logger"
	"github.com/pmaffi/jira-flow-metrics/internal/service"
	"github.com/pmaffi/jira-flow-metrics/internal/storage"
	"github.com/pmaffi/jira-flow-metrics/internal/storage/postgres"
	"github.com/pmaffi/jira-flow-metrics/internal/storage/sqlite"
)

var (
	outputJSON     bool
	startDate      string
	endDate        string
	remainingHours float64
	deadline       string
	historyLimit   int
)

var rootCmd = &cobra.Command{
	Use:   "jira-flow",
	Short: "Jira flow metrics tool",
	Long: `A CLI tool for collecting Jira issue data and computing flow metrics.

This tool fetches issues and their status changelogs from Jira, derives
WIP, throughput, cycle time, and work-item age, and forecasts completion
from historical sprint velocity.`,
}

var collectCmd = &cobra.Command{
	Use:   "collect [project]",
	Short: "Collect data from Jira",
	Long:  `Fetch issues and changelogs for a Jira project window, compute a metrics snapshot, and store it locally.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCollect,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics [project]",
	Short: "Show the latest metrics snapshot",
	Long:  `Display the most recent stored flow metrics snapshot for a project.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMetrics,
}

var forecastCmd = &cobra.Command{
	Use:   "forecast [project]",
	Short: "Show a completion forecast",
	Long:  `Forecast completion of the remaining work from historical sprint velocity.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runForecast,
}

var historyCmd = &cobra.Command{
	Use:   "history [project]",
	Short: "Show sprint history",
	Long:  `Display the stored sprint records the forecast trains on.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	collectCmd.Flags().StringVar(&startDate, "start", "", "window start (YYYY-MM-DD)")
	collectCmd.Flags().StringVar(&endDate, "end", "", "window end (YYYY-MM-DD)")
	forecastCmd.Flags().Float64Var(&remainingHours, "remaining", 0, "remaining work in hours (default: latest snapshot)")
	forecastCmd.Flags().StringVar(&deadline, "deadline", "", "target date (YYYY-MM-DD)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of records to show")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func getService(cfg *config.Config) (*service.Service, func(), error) {
	store, err := getStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logg := logger.New(cfg)
	coll := collector.NewJiraCollector(cfg, logg)
	return service.New(cfg, coll, store, logg), func() { store.Close() }, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func projectArg(args []string, cfg *config.Config) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.JiraProject
}

func getWindow(cfg *config.Config) domain.TimeRange {
	now := time.Now().UTC()
	window := domain.TimeRange{
		Start: now.AddDate(0, 0, -cfg.SprintLengthDays),
		End:   now,
	}

	if startDate != "" {
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			window.Start = t
		}
	}
	if endDate != "" {
		if t, err := time.Parse("2006-01-02", endDate); err == nil {
			window.End = t
		}
	}
	return window
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := getService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	project := projectArg(args, cfg)
	window := getWindow(cfg)

	fmt.Printf("Collecting data for project: %s\n", project)
	fmt.Printf("Window: %s to %s\n", window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))

	snapshot, err := svc.RunCollection(context.Background(), project, window)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	if outputJSON {
		return printJSON(snapshot)
	}

	fmt.Printf("\nSession state: %s\n", snapshot.SessionState)
	fmt.Printf("Issues collected: %d\n", snapshot.TotalIssues)
	printSnapshot(snapshot)
	fmt.Println("Data collection complete!")
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := getService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	project := projectArg(args, cfg)
	snapshot, err := svc.LatestSnapshot(context.Background(), project)
	if err != nil {
		return fmt.Errorf("failed to get snapshot: %w", err)
	}
	if snapshot == nil {
		return fmt.Errorf("no snapshot stored for %s, run collect first", project)
	}

	if outputJSON {
		return printJSON(snapshot)
	}

	fmt.Printf("\nFlow Metrics: %s\n", project)
	fmt.Printf("Window: %s to %s\n", snapshot.Window.Start.Format("2006-01-02"), snapshot.Window.End.Format("2006-01-02"))
	printSnapshot(snapshot)
	return nil
}

func printSnapshot(snapshot *domain.MetricsSnapshot) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"WIP", fmt.Sprintf("%d", snapshot.WIPCount)})
	table.Append([]string{"Throughput (per week)", fmt.Sprintf("%.2f ± %.2f", snapshot.Throughput.PerWeek, snapshot.Throughput.StdDev)})
	table.Append([]string{"Resolved in window", fmt.Sprintf("%d", snapshot.Throughput.ResolvedCount)})
	table.Append([]string{"Cycle Time (mean days)", fmt.Sprintf("%.1f", snapshot.CycleTime.MeanDays)})
	table.Append([]string{"Cycle Time (p85 days)", fmt.Sprintf("%.1f", snapshot.CycleTime.P85Days)})
	table.Append([]string{"Lead Time (mean days)", fmt.Sprintf("%.1f", snapshot.LeadTime.MeanDays)})
	table.Append([]string{"Work Item Age (mean days)", fmt.Sprintf("%.1f", snapshot.WorkItemAge.MeanDays)})
	table.Append([]string{"Remaining Work (hours)", fmt.Sprintf("%.1f", snapshot.RemainingHours)})
	table.Append([]string{"Unestimated Issues", fmt.Sprintf("%d", snapshot.UnestimatedCount)})
	table.Append([]string{"Exclusions", fmt.Sprintf("%d", len(snapshot.Exclusions))})
	table.Render()

	if len(snapshot.StatusCounts) > 0 {
		fmt.Println("\nIssues by status:")
		statusTable := tablewriter.NewWriter(os.Stdout)
		statusTable.SetHeader([]string{"Status", "Count"})
		for status, count := range snapshot.StatusCounts {
			statusTable.Append([]string{status, fmt.Sprintf("%d", count)})
		}
		statusTable.Render()
	}
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := getService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var deadlineTime time.Time
	if deadline != "" {
		deadlineTime, err = time.Parse("2006-01-02", deadline)
		if err != nil {
			return fmt.Errorf("invalid deadline %q, expected YYYY-MM-DD", deadline)
		}
	}

	project := projectArg(args, cfg)
	forecast, err := svc.Forecast(context.Background(), project, remainingHours, deadlineTime)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	if outputJSON {
		return printJSON(forecast)
	}

	fmt.Printf("\nForecast: %s\n\n", project)
	if !forecast.Available {
		fmt.Printf("Forecast unavailable: %s (records: %d)\n", forecast.Reason, forecast.RecordsUsed)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Velocity (hours/week)", fmt.Sprintf("%.1f", forecast.VelocityPerWeek)})
	table.Append([]string{"Estimate Accuracy", fmt.Sprintf("%.2f", forecast.EstimateAccuracy)})
	table.Append([]string{"Remaining Work (hours)", fmt.Sprintf("%.1f", forecast.RemainingHours)})
	table.Append([]string{"Expected Weeks Needed", fmt.Sprintf("%.1f", forecast.ExpectedWeeksNeeded)})
	table.Append([]string{"Weeks Remaining", fmt.Sprintf("%.1f", forecast.WeeksRemaining)})
	table.Append([]string{"Completion Probability", fmt.Sprintf("%.0f%%", forecast.CompletionProbability*100)})
	table.Append([]string{"Risk", string(forecast.Risk)})
	table.Append([]string{"Records Used", fmt.Sprintf("%d", forecast.RecordsUsed)})
	table.Render()

	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := getService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	project := projectArg(args, cfg)
	records, err := svc.SprintRecords(context.Background(), project, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if outputJSON {
		return printJSON(records)
	}

	fmt.Printf("\nSprint History: %s\n\n", project)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Sprint", "Estimated (h)", "Completed (h)", "Days", "Ended"})
	for _, r := range records {
		table.Append([]string{
			r.SprintName,
			fmt.Sprintf("%.1f", r.EstimatedHours),
			fmt.Sprintf("%.1f", r.CompletedHours),
			fmt.Sprintf("%.0f", r.DurationDays),
			r.EndedAt.Format("2006-01-02"),
		})
	}
	table.Render()

	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
