// Package regionadmin implements the engine's external admin CLI surface
// (spec.md §6): compact, flush, split, and inspect-hfile, each operating
// directly on the on-disk region layout rather than going through a live
// server. The exit contract is spec.md §6's, verbatim: 0 on success, -1
// with usage on the error stream on an argument error.
package regionadmin

import (
	"fmt"
	"os"

	"github.com/dkvlabs/regiondb/cmd/util"
	"github.com/spf13/cobra"
)

// RootCmd is the regionadmin command tree, mounted under the top-level
// regiondb root command.
var RootCmd = &cobra.Command{
	Use:   "regionadmin",
	Short: "Offline maintenance operations on a region's on-disk files",
	Long: `regionadmin operates directly on a region's on-disk layout
(data-dir/tables/<namespace>/<table>/<region>), without a running server:
flush, compact, split, and inspect-hfile.`,
}

func init() {
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true

	RootCmd.PersistentFlags().String("data-dir", "data", util.WrapString("Root data directory (regionfs.Root)"))
	RootCmd.PersistentFlags().String("namespace", "default", util.WrapString("Region's namespace"))
	RootCmd.PersistentFlags().String("table", "", util.WrapString("Region's table name"))
	RootCmd.PersistentFlags().String("region", "", util.WrapString("Region's encoded name"))

	RootCmd.AddCommand(flushCmd)
	RootCmd.AddCommand(compactCmd)
	RootCmd.AddCommand(splitCmd)
	RootCmd.AddCommand(inspectHFileCmd)
}

// argError prints cmd's usage to the error stream and terminates the
// process with spec.md §6's argument-error exit code, -1. It returns an
// error only so call sites can use it in a `return argError(...)` early
// return; the process is already gone by the time that return executes.
func argError(cmd *cobra.Command, format string, args ...interface{}) error {
	fmt.Fprintf(os.Stderr, "regionadmin: %s\n", fmt.Sprintf(format, args...))
	fmt.Fprintln(os.Stderr, cmd.UsageString())
	os.Exit(-1)
	return errArgument
}

var errArgument = fmt.Errorf("argument error")

// fail reports an operational error (as opposed to a bad argument) and
// exits with the same -1 code; spec.md §6 names -1 for argument errors
// specifically, but leaves every other admin-tool failure mode to the
// tool itself, and a partially-applied flush/compact/split has no
// meaningful "keep going" exit code to return instead.
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "regionadmin: %s\n", fmt.Sprintf(format, args...))
	os.Exit(-1)
}

func requiredFlags(cmd *cobra.Command) (dataDir, namespace, table, regionName string, err error) {
	dataDir, _ = cmd.Flags().GetString("data-dir")
	namespace, _ = cmd.Flags().GetString("namespace")
	table, _ = cmd.Flags().GetString("table")
	regionName, _ = cmd.Flags().GetString("region")
	if table == "" {
		return "", "", "", "", argError(cmd, "--table is required")
	}
	if regionName == "" {
		return "", "", "", "", argError(cmd, "--region is required")
	}
	return dataDir, namespace, table, regionName, nil
}
