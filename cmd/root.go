package cmd

import (
	"fmt"
	"os"

	"github.com/dkvlabs/regiondb/cmd/engined"
	"github.com/dkvlabs/regiondb/cmd/regionadmin"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "regiondb",
		Short: "per-node region storage engine",
		Long: fmt.Sprintf(`regiondb (v%s)

A log-structured, sorted-key/value table store engine for one node:
regions of a sorted row range, backed by an in-memory buffer, a
write-ahead log, and compacted on-disk sorted files.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("regiondb v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(engined.RootCmd)
	RootCmd.AddCommand(regionadmin.RootCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// It exits the process with status 1 if RootCmd returns an error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
