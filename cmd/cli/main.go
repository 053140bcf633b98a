package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yagudaev/openfinance-sub000/internal/config"
	"github.com/yagudaev/openfinance-sub000/internal/docstore"
	"github.com/yagudaev/openfinance-sub000/internal/ledger"
	"github.com/yagudaev/openfinance-sub000/internal/logger"
	"github.com/yagudaev/openfinance-sub000/internal/models"
	"github.com/yagudaev/openfinance-sub000/internal/notionsync"
	"github.com/yagudaev/openfinance-sub000/internal/pipeline"
	"github.com/yagudaev/openfinance-sub000/internal/store"
	"github.com/yagudaev/openfinance-sub000/internal/textextract"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	rootCmd := &cobra.Command{
		Use:   "openfinance",
		Short: "Bank statement extraction and net worth tracking",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newProcessCommand(log),
		newRebuildCommand(log),
		newNetWorthCommand(log),
		newAccountsCommand(log),
		newNotionSyncCommand(log),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads config and opens the SQLite store. Callers own Close.
func openStore(ctx context.Context, log zerolog.Logger) (*models.Config, *store.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	repo, err := store.NewService(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, repo, nil
}

func newProcessCommand(log zerolog.Logger) *cobra.Command {
	var userID string
	var timezone string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Extract and verify a bank statement, then rebuild the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			ctx = logger.WithContext(ctx, log)

			filePath := args[0]
			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", filePath, err)
			}

			cfg, repo, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			if timezone == "" {
				timezone = cfg.Extract.DefaultTimezone
			}

			docs, err := docstore.NewLocalStore("documents")
			if err != nil {
				return err
			}
			uri, err := docs.Save(ctx, userID, filepath.Base(filePath), data)
			if err != nil {
				return fmt.Errorf("archiving document: %w", err)
			}

			text, err := textextract.New().ExtractText(data)
			if err != nil {
				return fmt.Errorf("extracting text: %w", err)
			}

			client := pipeline.NewGeminiExtractionClient(cfg.Extract.Model)
			orchestrator := pipeline.NewOrchestrator(repo, client, nil, nil, cfg.Extract.MaxIterations, log)

			result, err := orchestrator.ProcessStatement(ctx, pipeline.ProcessParams{
				UserID:   userID,
				Text:     text,
				FileURI:  uri,
				Filename: filepath.Base(filePath),
				Timezone: timezone,
			})
			if err != nil {
				return fmt.Errorf("processing statement: %w", err)
			}

			st := result.Statement
			fmt.Printf("Processed %s\n", filePath)
			fmt.Printf("  Statement:    %s\n", st.ID)
			fmt.Printf("  Bank:         %s (%s)\n", st.BankName, st.AccountNumber)
			fmt.Printf("  Period:       %s to %s\n", st.PeriodStart, st.PeriodEnd)
			fmt.Printf("  Transactions: %d\n", result.TransactionCount)
			if result.IsBalanced {
				fmt.Println("  Verification: balanced")
			} else {
				fmt.Printf("  Verification: UNBALANCED (discrepancy %s)\n", st.DiscrepancyAmount.StringFixed(2))
			}

			engine := ledger.NewEngine(repo, log)
			if err := engine.RecalculateNetWorth(ctx, userID); err != nil {
				return fmt.Errorf("rebuilding ledger: %w", err)
			}
			fmt.Println("Ledger rebuilt.")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user ID")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the statement (defaults to config)")

	return cmd
}

func newRebuildCommand(log zerolog.Logger) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the daily balance ledger from statement history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)

			_, repo, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			engine := ledger.NewEngine(repo, log)
			if err := engine.RecalculateNetWorth(ctx, userID); err != nil {
				return fmt.Errorf("rebuilding ledger: %w", err)
			}

			fmt.Println("Ledger rebuilt.")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user ID")

	return cmd
}

func newNetWorthCommand(log zerolog.Logger) *cobra.Command {
	var userID string
	var since string

	cmd := &cobra.Command{
		Use:   "networth",
		Short: "Show the daily net worth series and current summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)

			var sinceDay civil.Date
			if since != "" {
				parsed, err := civil.ParseDate(since)
				if err != nil {
					return fmt.Errorf("invalid --since date %q, expected YYYY-MM-DD", since)
				}
				sinceDay = parsed
			}

			_, repo, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			engine := ledger.NewEngine(repo, log)

			summary, err := engine.GetNetWorthSummary(ctx, userID)
			if err != nil {
				return fmt.Errorf("loading summary: %w", err)
			}

			fmt.Printf("Net worth as of %s: %s\n", summary.AsOf, summary.NetWorth.StringFixed(2))
			fmt.Printf("  Assets:      %s\n", summary.TotalAssets.StringFixed(2))
			fmt.Printf("  Liabilities: %s\n", summary.TotalLiabilities.StringFixed(2))
			if summary.MonthChange != nil {
				fmt.Printf("  1m change:   %s\n", summary.MonthChange.StringFixed(2))
			}
			if summary.YearChange != nil {
				fmt.Printf("  1y change:   %s\n", summary.YearChange.StringFixed(2))
			}

			days, err := engine.GetDailyNetWorth(ctx, userID, sinceDay)
			if err != nil {
				return fmt.Errorf("loading daily series: %w", err)
			}
			if len(days) == 0 {
				fmt.Println("\nNo daily history. Process a statement or run 'openfinance rebuild'.")
				return nil
			}

			fmt.Printf("\n%-12s %14s %14s %14s\n", "Date", "Assets", "Liabilities", "Net Worth")
			for _, d := range days {
				fmt.Printf("%-12s %14s %14s %14s\n",
					d.Date, d.TotalAssets.StringFixed(2), d.TotalLiabilities.StringFixed(2), d.NetWorth.StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user ID")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")

	return cmd
}

func newAccountsCommand(log zerolog.Logger) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List net worth accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)

			_, repo, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			accounts, err := repo.ListNetWorthAccounts(ctx, userID)
			if err != nil {
				return fmt.Errorf("listing accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts.")
				return nil
			}

			fmt.Printf("%-24s %-10s %-8s %14s\n", "Name", "Type", "Source", "Balance")
			for _, a := range accounts {
				source := "linked"
				if a.IsManual {
					source = "manual"
				}
				fmt.Printf("%-24s %-10s %-8s %14s\n", a.Name, a.AccountType, source, a.CurrentBalance.StringFixed(2))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user ID")

	return cmd
}

func newNotionSyncCommand(log zerolog.Logger) *cobra.Command {
	var userID string
	var since string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "notion-sync",
		Short: "Mirror the daily net worth series into a Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			ctx = logger.WithContext(ctx, log)

			var sinceDay civil.Date
			if since != "" {
				parsed, err := civil.ParseDate(since)
				if err != nil {
					return fmt.Errorf("invalid --since date %q, expected YYYY-MM-DD", since)
				}
				sinceDay = parsed
			}

			cfg, repo, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			if !cfg.Notion.Enabled() {
				return fmt.Errorf("NOTION_TOKEN and NOTION_NET_WORTH_DATABASE_ID must be set")
			}

			engine := ledger.NewEngine(repo, log)
			client := notionsync.NewNotionClient(cfg.Notion.Token)

			if err := notionsync.SyncNetWorth(ctx, engine, client, cfg.Notion.DatabaseID, userID, sinceDay, dryRun); err != nil {
				return fmt.Errorf("syncing to Notion: %w", err)
			}

			fmt.Println("Notion sync completed.")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "default", "user ID")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log changes without writing to Notion")

	return cmd
}
