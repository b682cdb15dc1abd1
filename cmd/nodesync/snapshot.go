package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vango-dev/nodesync/internal/errors"
	"github.com/vango-dev/nodesync/pkg/snapshot"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved UI snapshots",
	}
	cmd.AddCommand(snapshotInspectCmd(), snapshotGetCmd())
	return cmd
}

func snapshotInspectCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New("N201").Wrap(err)
			}
			return printSnapshot(cmd.OutOrStdout(), data, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full document")
	return cmd
}

func snapshotGetCmd() *cobra.Command {
	var (
		configPath string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "get <ui-id>",
		Short: "Load a snapshot from the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx, cfg.Snapshot)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("N103").WithDetail("snapshot.backend is none")
			}
			defer store.Close()

			data, err := store.Load(ctx, args[0])
			if err != nil {
				return errors.New("N201").Wrap(err)
			}
			return printSnapshot(cmd.OutOrStdout(), data, raw)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to nodesync.yaml")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full document")
	return cmd
}

func printSnapshot(w io.Writer, data []byte, raw bool) error {
	doc, err := snapshot.Unmarshal(data)
	if err != nil {
		return errors.New("N202").Wrap(err)
	}
	// Restoring checks every reference in the document.
	tree, err := snapshot.Restore(doc)
	if err != nil {
		return errors.New("N202").Wrap(err)
	}

	if raw {
		out, err := snapshot.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	fmt.Fprintf(w, "version %d, %d nodes, root %d\n", doc.Version, tree.Len(), doc.Root)
	for _, rec := range doc.Nodes {
		label := rec.Tag
		if label == "" {
			label = "-"
		}
		if rec.Component != "" {
			label += " (" + rec.Component + ")"
		}
		status := ""
		if rec.Disabled {
			status = " disabled"
		}
		keys := make([]string, 0, len(rec.Properties))
		for k := range rec.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "  %4d  parent %-4d %s%s\n", rec.ID, rec.Parent, label, status)
		for _, k := range keys {
			fmt.Fprintf(w, "          %s = %s\n", k, rec.Properties[k])
		}
	}
	return nil
}
