package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kakeibo/internal/cli"
	"kakeibo/internal/core"
	kakeibohttp "kakeibo/internal/http"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(true)
			defer a.close()

			server := kakeibohttp.NewServer(":"+a.cfg.Port, a.ledger, a.export, a.importer, a.repo, a.cfg.BackupDir, a.cfg.WriteRateLimit)

			ctx, done := cli.GracefulShutdown(a.logger, 10*time.Second, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Server shutdown failed", "error", err)
				}
			})

			a.logger.Info("Starting HTTP server", "port", a.cfg.Port)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server: %w", err)
			}
			cli.WaitForShutdown(ctx, done)
			return nil
		},
	}
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database file and run migrations (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()
			fmt.Printf("Database ready at %s\n", a.repo.Path())
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var in services.EntryInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record one income or expense entry",
		Example: `  kakeibo add --date 2024-03-05 --category expense --subject groceries --amount 42.50
  kakeibo add --date 令和6年3月5日 --category income --subject salary --amount 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(true)
			defer a.close()

			e, err := a.ledger.AddEntry(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Recorded entry %d: %s %s %q %s\n",
				e.ID, e.Date.ISO(), e.Category, e.Subject, e.Amount)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Date, "date", "", "entry date (ISO, slash, kanji or era form)")
	cmd.Flags().StringVar(&in.Category, "category", "", "income or expense")
	cmd.Flags().StringVar(&in.Subject, "subject", "", "what the entry is for")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount, e.g. 42.50")
	for _, f := range []string{"date", "category", "subject", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newListCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, optionally for one month",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			entries, err := a.ledger.ListEntries(cmd.Context(), month)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No entries.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tSUBJECT\tAMOUNT")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					e.ID, e.Date.ISO(), e.Category, e.Subject, e.Amount)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "restrict to one month (YYYY-MM)")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and balance for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			sum, err := a.ledger.Summary(cmd.Context(), defaultMonth(month))
			if err != nil {
				return err
			}
			fmt.Printf("Month:    %s\n", sum.Month)
			fmt.Printf("Income:   %s\n", sum.Income)
			fmt.Printf("Expense:  %s\n", sum.Expense)
			fmt.Printf("Balance:  %s\n", sum.Balance)
			fmt.Printf("Entries:  %d\n", sum.Count)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to summarize (YYYY-MM, default current)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the detailed monthly report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			st, err := a.ledger.Statistics(cmd.Context(), defaultMonth(month))
			if err != nil {
				return err
			}
			fmt.Printf("Month: %s (%d entries)\n\n", st.Month, st.TotalRecords)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "\tINCOME\tEXPENSE\n")
			fmt.Fprintf(w, "count\t%d\t%d\n", st.IncomeCount, st.ExpenseCount)
			fmt.Fprintf(w, "total\t%s\t%s\n", st.IncomeTotal, st.ExpenseTotal)
			fmt.Fprintf(w, "average\t%s\t%s\n", st.AvgIncome, st.AvgExpense)
			fmt.Fprintf(w, "max\t%s\t%s\n", st.MaxIncome, st.MaxExpense)
			fmt.Fprintf(w, "min\t%s\t%s\n", st.MinIncome, st.MinExpense)
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\nBalance: %s\n\nBy subject:\n", st.Balance)
			w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, sa := range st.SubjectBreakdown {
				fmt.Fprintf(w, "  %s\t%s\t%s\n", sa.Category, sa.Subject, sa.Amount)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to report (YYYY-MM, default current)")
	return cmd
}

func newMonthsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List months with recorded data, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			months, err := a.ledger.Months(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range months {
				fmt.Println(m)
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var month, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export entries as CSV, XLSX or a monthly report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "csv":
				return a.export.WriteCSV(cmd.Context(), w, month)
			case "xlsx":
				if out == "" {
					return fmt.Errorf("xlsx export requires --out")
				}
				return a.export.WriteXLSX(cmd.Context(), w, month)
			case "report":
				return a.export.WriteMonthlyReportCSV(cmd.Context(), w, defaultMonth(month))
			default:
				return fmt.Errorf("unknown format %q (want csv, xlsx or report)", format)
			}
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "restrict to one month (YYYY-MM)")
	cmd.Flags().StringVar(&format, "format", "csv", "csv, xlsx or report")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var months, out string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Write a side-by-side CSV comparison of several months",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			list := strings.Split(months, ",")
			for i := range list {
				list[i] = strings.TrimSpace(list[i])
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return a.export.WriteComparisonCSV(cmd.Context(), w, list)
		},
	}
	cmd.Flags().StringVar(&months, "months", "", "comma-separated months (YYYY-MM,YYYY-MM,...)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("months")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import entries from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(true)
			defer a.close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			report, err := a.importer.ImportCSV(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d entries, %d failed.\n", report.Imported, report.Failed)
			for _, re := range report.Errors {
				fmt.Printf("  line %d: %s\n", re.Line, re.Message)
			}
			return nil
		},
	}
}

func newBackupCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a database file backup, or list existing ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			if list {
				backups, err := storage.ListBackups(a.cfg.BackupDir)
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					fmt.Println("No backups.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
				for _, b := range backups {
					fmt.Fprintf(w, "%s\t%d\t%s\n", b.Name, b.Size, b.Created.Format(time.RFC3339))
				}
				return w.Flush()
			}

			path, err := a.repo.BackupFile(cmd.Context(), a.cfg.BackupDir)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list existing backups instead of creating one")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move one month's entries into the archive (CSV copy written first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			moved, err := a.retention.ArchiveMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			fmt.Printf("Archived %d entries from %s\n", moved, month)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to archive (YYYY-MM)")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Move an archived month back into the live ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			restored, err := a.retention.RestoreMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d entries to %s\n", restored, month)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to restore (YYYY-MM)")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Archive all live months older than the newest N",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(false)
			defer a.close()

			if keep == 0 {
				keep = a.cfg.MonthsToKeep
			}
			archived, err := a.retention.Cleanup(cmd.Context(), keep)
			if err != nil {
				return err
			}
			if len(archived) == 0 {
				fmt.Println("Nothing to archive.")
				return nil
			}
			fmt.Printf("Archived months: %s\n", strings.Join(archived, ", "))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "months to keep live (default MONTHS_TO_KEEP)")
	return cmd
}

// defaultMonth substitutes the current month when none was given.
func defaultMonth(month string) string {
	if month != "" {
		return month
	}
	return core.NewDate(time.Now().Year(), int(time.Now().Month()), 1).YearMonth()
}
