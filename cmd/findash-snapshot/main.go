// Command findash-snapshot builds, encrypts and inspects dashboard snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"findash/internal/cli"
	"findash/internal/config"
	"findash/internal/log"
	"findash/internal/remote"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentSnapshot)

	rootCmd := &cobra.Command{
		Use:           "findash-snapshot",
		Short:         "Build and manage findash snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(encryptCmd(cfg))
	rootCmd.AddCommand(decryptCmd(cfg))
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ingestCmd(cfg))
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(validateCmd(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new DATA_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := remote.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func dataKey(cfg *config.Config) error {
	if cfg.DataKey == "" {
		return fmt.Errorf("DATA_KEY is not set; create one with keygen")
	}
	return nil
}

func encryptCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt SRC DST",
		Short: "Encrypt a file with DATA_KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dataKey(cfg); err != nil {
				return err
			}
			key, err := remote.ParseKey(cfg.DataKey)
			if err != nil {
				return err
			}
			return remote.EncryptFile(args[0], args[1], key)
		},
	}
}

func decryptCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt SRC DST",
		Short: "Decrypt a file with DATA_KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dataKey(cfg); err != nil {
				return err
			}
			key, err := remote.ParseKey(cfg.DataKey)
			if err != nil {
				return err
			}
			return remote.DecryptFile(args[0], args[1], key)
		},
	}
}
