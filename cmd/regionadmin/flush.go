package regionadmin

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush a region's MemBuffers to new SortedFiles",
	RunE:  runFlush,
}

func runFlush(cmd *cobra.Command, args []string) error {
	dataDir, namespace, table, regionName, err := requiredFlags(cmd)
	if err != nil {
		return err
	}

	r, err := openRegion(dataDir, namespace, table, regionName)
	if err != nil {
		fail("open region: %v", err)
	}

	q := &syncQueue{}
	r.Flush(q)
	if q.err != nil {
		fail("%v", q.err)
	}

	fmt.Printf("flushed region %s\n", r.ID())
	return nil
}
