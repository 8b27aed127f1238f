package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"findash/internal/amqp"
	"findash/internal/cli"
	"findash/internal/config"
	"findash/internal/log"
	gsheet "findash/internal/sheets/google"
	mem "findash/internal/sheets/memory"
	"findash/internal/snapshot"
)

func ingestCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Copy the warehouse tables into a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			warehouseURL, _ := cmd.Flags().GetString("warehouse")
			out, _ := cmd.Flags().GetString("out")
			useSheets, _ := cmd.Flags().GetBool("sheets")
			csvPath, _ := cmd.Flags().GetString("contracted-csv")
			csvUpdated, _ := cmd.Flags().GetString("contracted-updated")
			upload, _ := cmd.Flags().GetBool("upload")

			if useSheets && csvPath != "" {
				return fmt.Errorf("--sheets and --contracted-csv are mutually exclusive")
			}
			ctx := cmd.Context()

			opts := snapshot.IngestOptions{}
			switch {
			case useSheets:
				client, err := gsheet.NewFromEnv(ctx)
				if err != nil {
					return fmt.Errorf("google sheets: %w", err)
				}
				opts.ContractedHours = client
			case csvPath != "":
				store, err := mem.NewFromCSV(csvPath, csvUpdated)
				if err != nil {
					return err
				}
				opts.ContractedHours = store
			}

			start := time.Now()
			slog.InfoContext(ctx, "Opening warehouse", "url", snapshot.MaskURL(warehouseURL), log.FieldOperation, log.OpIngest)
			wh, err := snapshot.OpenWarehouse(warehouseURL)
			if err != nil {
				return err
			}
			defer wh.Close()

			w, err := snapshot.Create(out)
			if err != nil {
				return err
			}
			src, err := snapshot.Ingest(ctx, wh, w, opts)
			if cerr := w.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close snapshot: %w", cerr)
			}
			if err != nil {
				return err
			}

			kvPath := kvPathFor(out)
			if err := snapshot.WriteKV(kvPath, snapshot.KV{ContractedHoursUpdatedMonth: src.ContractedHoursUpdatedMonth}); err != nil {
				return err
			}
			first, last := src.MonthRange()
			slog.InfoContext(ctx, "Snapshot written",
				"path", out,
				"kv_path", kvPath,
				"first_month", first,
				"last_month", last,
				log.FieldDuration, time.Since(start).Milliseconds())

			if !upload {
				return nil
			}
			return uploadSnapshot(ctx, cfg, out, kvPath, src.LastUpdated)
		},
	}
	cmd.Flags().String("warehouse", cfg.WarehouseURL, "Warehouse URL: postgres://... or a SQLite path (PRW_CONN)")
	cmd.Flags().String("out", "prh-finance.sqlite3", "Snapshot file to create")
	cmd.Flags().Bool("sheets", false, "Read contracted hours from Google Sheets")
	cmd.Flags().String("contracted-csv", "", "Read contracted hours from a CSV file")
	cmd.Flags().String("contracted-updated", "", "Date contracted hours in the CSV were entered through")
	cmd.Flags().Bool("upload", false, "Encrypt and upload the snapshot to the bucket")
	return cmd
}

// kvPathFor places the KV side file next to the snapshot: x.sqlite3 -> x.json.
func kvPathFor(dbPath string) string {
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".json"
}

// uploadSnapshot puts both files in the bucket and announces the update.
func uploadSnapshot(ctx context.Context, cfg *config.Config, dbPath, kvPath string, updatedAt time.Time) error {
	if cfg.R2URL == "" || cfg.R2Bucket == "" {
		return fmt.Errorf("upload needs PRH_FINANCE_R2_URL and PRH_FINANCE_R2_BUCKET")
	}
	if err := dataKey(cfg); err != nil {
		return err
	}
	f, err := cli.NewFetcher(ctx, cfg)
	if err != nil {
		return err
	}
	if err := f.PutFile(ctx, cfg.R2DBObject, dbPath); err != nil {
		return err
	}
	if cfg.R2KVObject != "" {
		if err := f.PutFile(ctx, cfg.R2KVObject, kvPath); err != nil {
			return err
		}
	}

	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	defer client.Close()
	if err := client.PublishSnapshotUpdated(ctx, cfg.R2DBObject, updatedAt); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published snapshot update", log.FieldObject, cfg.R2DBObject)
	return nil
}
