package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/fintrack/internal/adapter/http/dto"
	"github.com/iho/fintrack/internal/adapter/http/middleware"
	"github.com/iho/fintrack/internal/infrastructure/config"
	"github.com/iho/fintrack/internal/infrastructure/logger"
	"github.com/iho/fintrack/internal/infrastructure/postgres"
)

type cliOptions struct {
	baseURL string
	timeout time.Duration
	secret  string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "fintrack-cli",
		Short:         "Fintrack CLI tool",
		Long:          `A command line interface for triggering and inspecting interest settlement.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the Fintrack API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("CRON_SECRET"), "Shared cron secret (defaults to CRON_SECRET)")

	rootCmd.AddCommand(newSettleCmd(opts), newMigrateCmd())

	return rootCmd
}

func newSettleCmd(opts *cliOptions) *cobra.Command {
	settleCmd := &cobra.Command{
		Use:   "settle",
		Short: "Interest settlement operations",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a manual settlement run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettlement(cmd.OutOrStdout(), opts)
		},
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent settlement runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSettlements(cmd.OutOrStdout(), opts, limit, offset)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")

	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Print the current period key and window state from local configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return printPeriod(cmd.OutOrStdout(), cfg, time.Now())
		},
	}

	var verifyLimit int
	verifyCmd := &cobra.Command{
		Use:   "verify [period-key]",
		Short: "Check that settled rows still match their run ledger entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return verifyRun(cmd.OutOrStdout(), opts, args[0])
			}
			return verifyRecent(cmd.OutOrStdout(), opts, verifyLimit)
		},
	}
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 20, "Number of recent runs to check")

	settleCmd.AddCommand(runCmd, listCmd, keyCmd, verifyCmd)
	return settleCmd
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(postgres.RunMigrations)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(postgres.RunMigrationsDown)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(postgres.MigrationVersion)
			},
		},
	)

	return migrateCmd
}

func migrate(step func(databaseURL, migrationsPath string, log zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.StorageError(); err != nil {
		return err
	}

	url, err := postgres.MigrationURL(cfg.DatabaseURL, cfg.ServiceKey)
	if err != nil {
		return err
	}

	return step(url, cfg.MigrationsPath, logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Service: "fintrack-cli", Output: os.Stderr}))
}

func runSettlement(out io.Writer, opts *cliOptions) error {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(opts.baseURL, "/")+"/api/cron/settle", nil)
	if err != nil {
		return err
	}
	authorize(req, opts.secret)

	body, status, err := do(req, opts.timeout)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("settlement FAILED (Status: %d): %s", status, errorMessage(body))
	}

	var result dto.SettleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Skipped {
		fmt.Fprintf(out, "Settlement SKIPPED (%s)\n", result.Reason)
		if result.SettleKey != "" {
			fmt.Fprintf(out, "Period: %s\n", result.SettleKey)
		}
		return nil
	}

	fmt.Fprintf(out, "Settlement COMPLETED\n")
	fmt.Fprintf(out, "Period: %s\nSettle ID: %s\nInserted: %d\n", result.SettleKey, result.SettleID, result.Inserted)
	fmt.Fprintf(out, "Loan interest: %s\nInjection interest: %s\nDeposit interest: %s\n",
		result.LoanInterest, result.InjectionInterest, result.DepositInterest)
	return nil
}

func listSettlements(out io.Writer, opts *cliOptions, limit, offset int) error {
	url := fmt.Sprintf("%s/api/v1/settlements?limit=%d&offset=%d", strings.TrimRight(opts.baseURL, "/"), limit, offset)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	authorize(req, opts.secret)

	body, status, err := do(req, opts.timeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("listing FAILED (Status: %d): %s", status, errorMessage(body))
	}

	var result dto.SettlementRunsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Runs) == 0 {
		fmt.Fprintln(out, "No settlement runs")
		return nil
	}

	fmt.Fprintf(out, "%-14s %-14s %-4s %-14s %-14s %-14s %s\n", "PERIOD", "SETTLE ID", "ROWS", "LOAN", "INJECTION", "DEPOSIT", "CREATED")
	for _, run := range result.Runs {
		fmt.Fprintf(out, "%-14s %-14s %-4d %-14s %-14s %-14s %s\n",
			run.SettleKey, truncate(run.SettleID, 14), run.Inserted,
			run.LoanInterest, run.InjectionInterest, run.DepositInterest,
			run.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func verifyRun(out io.Writer, opts *cliOptions, key string) error {
	target := fmt.Sprintf("%s/api/v1/settlements/%s/reconciliation", strings.TrimRight(opts.baseURL, "/"), neturl.PathEscape(key))
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	authorize(req, opts.secret)

	body, status, err := do(req, opts.timeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusConflict {
		return fmt.Errorf("verification FAILED (Status: %d): %s", status, errorMessage(body))
	}

	var result dto.ReconciliationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	printReconciliation(out, &result)
	if !result.Reconciled {
		return fmt.Errorf("period %s does not reconcile", key)
	}
	return nil
}

func verifyRecent(out io.Writer, opts *cliOptions, limit int) error {
	target := fmt.Sprintf("%s/api/v1/settlements/reconciliation?limit=%d", strings.TrimRight(opts.baseURL, "/"), limit)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	authorize(req, opts.secret)

	body, status, err := do(req, opts.timeout)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("verification FAILED (Status: %d): %s", status, errorMessage(body))
	}

	var report dto.ReconciliationReportResponse
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Fprintf(out, "Checked %d runs, %d reconciled\n", report.TotalRuns, report.ReconciledRuns)
	for _, d := range report.Discrepancies {
		printReconciliation(out, d)
	}
	if len(report.Discrepancies) > 0 {
		return fmt.Errorf("%d runs do not reconcile", len(report.Discrepancies))
	}
	return nil
}

func printReconciliation(out io.Writer, r *dto.ReconciliationResponse) {
	state := "OK"
	if !r.Reconciled {
		state = "MISMATCH"
	}
	fmt.Fprintf(out, "%s %s\n", r.SettleKey, state)
	fmt.Fprintf(out, "  income:  recorded %s, actual %s\n", r.RecordedIncome, r.ActualIncome)
	fmt.Fprintf(out, "  expense: recorded %s, actual %s\n", r.RecordedExpense, r.ActualExpense)
	fmt.Fprintf(out, "  rows:    recorded %d, actual %d\n", r.RecordedRows, r.ActualRows)
}

func printPeriod(out io.Writer, cfg *config.Config, now time.Time) error {
	local := now.In(cfg.Location)
	mode := cfg.Mode()

	fmt.Fprintf(out, "Now: %s\n", local.Format(time.RFC3339))
	fmt.Fprintf(out, "Period key: %s\n", mode.PeriodKey(local))
	if mode.TestMode {
		fmt.Fprintln(out, "Mode: test (hourly, no window)")
		return nil
	}

	fmt.Fprintf(out, "Mode: production (window %s %02d:00-%02d:%02d %s)\n",
		mode.Window.Weekday, mode.Window.Hour, mode.Window.Hour, mode.Window.Minutes-1, cfg.Location)
	fmt.Fprintf(out, "In window: %v\n", mode.Window.Contains(local))
	return nil
}

func authorize(req *http.Request, secret string) {
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
		req.Header.Set(middleware.CronSecretHeader, secret)
	}
}

func do(req *http.Request, timeout time.Duration) ([]byte, int, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func errorMessage(body []byte) string {
	var resp dto.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return string(bytes.TrimSpace(body))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
