package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/hostgrid/rackq/internal/inventory"
	"github.com/hostgrid/rackq/internal/pkg/rackql"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		inventoryPath string
		verbosity     int
	)

	cmd := &cobra.Command{
		Use:   `rackq [flags] "<query>"`,
		Short: "Run boolean filter queries against a host inventory",
		Long: `rackq evaluates a fully parenthesized filter query against an inventory
snapshot and prints the name of every matching entity, one per line.

Examples:
  rackq -i inventory.json "(= name 'web01')"
  rackq -i inventory.json "(& (pool 'frontend') (attr status.health = 'ok'))"
  rackq -i inventory.json "(| (datacenter 'dc1') (datacenter 'dc2'))"
  rackq -i inventory.json "(attr cpu.count > 8)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], inventoryPath, newLogger(verbosity))
		},
	}

	cmd.PersistentFlags().StringVarP(&inventoryPath, "inventory", "i", "inventory.json", "inventory snapshot file (.json, or .zst for zstd-compressed)")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	cmd.AddCommand(newServeCmd(&inventoryPath, &verbosity))
	return cmd
}

func newLogger(verbosity int) hclog.Logger {
	level := hclog.Warn
	switch {
	case verbosity == 1:
		level = hclog.Info
	case verbosity >= 2:
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "rackq",
		Level:  level,
		Output: os.Stderr,
	})
}

func runQuery(cmd *cobra.Command, raw, inventoryPath string, logger hclog.Logger) error {
	store, err := inventory.Load(inventoryPath)
	if err != nil {
		return printedErr(cmd, fmt.Errorf("load inventory: %w", err))
	}
	logger.Debug("inventory loaded", "path", inventoryPath, "entities", store.Len())

	reg := rackql.NewRegistry()
	node, leftover, err := rackql.ParseQuery(raw, reg)
	if err != nil {
		return printedErr(cmd, fmt.Errorf("invalid query: %w", err))
	}
	if len(leftover) > 0 {
		logger.Warn("ignoring trailing tokens after query", "count", len(leftover))
	}

	qctx := rackql.BuildContext(store)
	matches := rackql.Run(node, rackql.NewSet(store.Keys()...), qctx, store)

	names := make([]string, 0, len(matches))
	for key := range matches {
		names = append(names, key.Name)
	}
	slices.Sort(names)
	names = slices.Compact(names)
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// printedErr writes err to stderr and returns it, so Execute exits non-zero
// without cobra re-printing usage noise.
func printedErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "rackq:", err)
	return err
}
