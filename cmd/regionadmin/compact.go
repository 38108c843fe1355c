package regionadmin

import (
	"fmt"

	"github.com/dkvlabs/regiondb/cmd/util"
	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact a region's Stores, merging SortedFiles",
	RunE:  runCompact,
}

func init() {
	compactCmd.Flags().Bool("major", false, util.WrapString("Run a major compaction (merges all files, drops shadowed tombstones) instead of a minor one"))
}

func runCompact(cmd *cobra.Command, args []string) error {
	dataDir, namespace, table, regionName, err := requiredFlags(cmd)
	if err != nil {
		return err
	}
	major, _ := cmd.Flags().GetBool("major")

	r, err := openRegion(dataDir, namespace, table, regionName)
	if err != nil {
		fail("open region: %v", err)
	}

	q := &syncQueue{}
	r.Compact(q, major)
	if q.err != nil {
		fail("%v", q.err)
	}

	kind := "minor"
	if major {
		kind = "major"
	}
	fmt.Printf("%s-compacted region %s\n", kind, r.ID())
	return nil
}
