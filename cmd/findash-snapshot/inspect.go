package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"findash/internal/config"
	"findash/internal/snapshot"
	"findash/internal/statement"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate PATH",
		Short: "Apply the snapshot schema migrations to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := snapshot.RunMigrations(args[0]); err != nil {
				return err
			}
			version, dirty, err := snapshot.SchemaVersion(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", version, dirty)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats PATH",
		Short: "Print the month range and row counts of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kvPath, _ := cmd.Flags().GetString("kv")
			src, err := snapshot.LoadFile(cmd.Context(), args[0], kvPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if info, err := os.Stat(args[0]); err == nil {
				fmt.Fprintf(out, "file:          %s (%s)\n", args[0], humanize.Bytes(uint64(info.Size())))
			}
			first, last := src.MonthRange()
			fmt.Fprintf(out, "last updated:  %s (%s)\n", src.LastUpdated.Format("2006-01-02 15:04"), humanize.Time(src.LastUpdated))
			fmt.Fprintf(out, "months:        %s .. %s\n", first, last)
			fmt.Fprintf(out, "contracted hours updated: %s\n", src.ContractedHoursUpdatedMonth)

			counts := src.Counts()
			tables := make([]string, 0, len(counts))
			for t := range counts {
				tables = append(tables, t)
			}
			sort.Strings(tables)
			for _, t := range tables {
				fmt.Fprintf(out, "  %-18s %s\n", t, humanize.Comma(int64(counts[t])))
			}
			return nil
		},
	}
	cmd.Flags().String("kv", "", "JSON side file overriding the stored settings")
	return cmd
}

func validateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate PATH",
		Short: "Check the income statement layout against a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defPath, _ := cmd.Flags().GetString("definition")
			def := statement.DefaultDefinition()
			if defPath != "" {
				var err error
				if def, err = statement.LoadDefinition(defPath); err != nil {
					return err
				}
			}
			src, err := snapshot.LoadFile(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, r := range src.IncomeStatement {
				if err := r.Validate(); err != nil {
					invalid++
					fmt.Fprintf(out, "row %s/%s/%s: %v\n", r.LedgerAccount, r.DepartmentID, r.Month, err)
				}
			}
			unresolved := statement.Validate(def, src.IncomeStatement)
			for _, u := range unresolved {
				fmt.Fprintf(out, "total %q: reference %q matches no rows\n", u.Total, u.Ref)
			}
			if invalid > 0 || len(unresolved) > 0 {
				return fmt.Errorf("%d invalid rows, %d unresolved references", invalid, len(unresolved))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
	cmd.Flags().String("definition", cfg.StatementDefinition, "JSON income statement layout (STATEMENT_DEFINITION)")
	return cmd
}
