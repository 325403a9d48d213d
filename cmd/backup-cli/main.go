// Command backup-cli takes, lists and restores store snapshots outside the server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/backup"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/logging"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

// opener builds a Manager and returns the cleanup that releases it. With
// durable set it refuses stores that do not outlive the process.
type opener func(ctx context.Context, durable bool) (*backup.Manager, func(), error)

func main() {
	if err := newRootCmd(openFromEnv, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context, durable bool) (*backup.Manager, func(), error) {
	cfg := config.Load()
	if durable {
		if err := checkDurable(cfg.Store); err != nil {
			return nil, nil, err
		}
	}
	logger, sink, err := logging.New(logging.Options{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		sink.Close()
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	cleanup := func() {
		st.Close()
		_ = logger.Sync()
		sink.Close()
	}
	return backup.NewManager(st, cfg.Backup.Dir, cfg.Backup.RetentionDays, logger), cleanup, nil
}

// checkDurable rejects the in-process store without STORE_DATA_DIR: a snapshot
// of it is always empty and a restore into it is lost on exit.
func checkDurable(cfg config.StoreConfig) error {
	if store.Volatile(cfg) {
		return fmt.Errorf("the memory store has no STORE_DATA_DIR; set it or choose a persistent STORE_BACKEND")
	}
	return nil
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "backup-cli",
		Short: "Create, list and restore Healthy City snapshots",
	}
	root.SetOut(out)
	root.SetErr(out)
	// Bare invocation is misuse, not help.
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		_ = cmd.Usage()
		return fmt.Errorf("a command is required")
	}

	var reason string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, cleanup, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer cleanup()
			info, err := m.Create(cmd.Context(), reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot written: %s (%d bytes)\n", info.Path, info.Size)
			return nil
		},
	}
	backupCmd.Flags().StringVar(&reason, "reason", "manual", "label stored in the snapshot and its file name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, cleanup, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()
			files, err := m.List()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no snapshots in %s\n", m.Dir())
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Size, f.Modified.UTC().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace every table with the contents of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cleanup, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := m.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
			return nil
		},
	}

	root.AddCommand(backupCmd, listCmd, restoreCmd)
	return root
}
