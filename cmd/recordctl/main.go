// Command recordctl is an operational CLI for the record store core: seed
// and time query plans against a reference in-memory KV store, or drive
// the online indexer over a DISABLED index end to end (spec §11.1).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "recordctl: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "recordctl",
		Short: "Operate and benchmark a fdbrecord record store",
	}
	root.AddCommand(newBenchCmd(logger))
	root.AddCommand(newBuildIndexCmd(logger))
	return root
}
