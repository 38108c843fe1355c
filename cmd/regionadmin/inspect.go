package regionadmin

import (
	"fmt"
	"os"

	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engine/sortedfile"
	"github.com/spf13/cobra"
)

var inspectHFileCmd = &cobra.Command{
	Use:   "inspect-hfile",
	Short: "Print a published SortedFile's trailer-level metadata",
	RunE:  runInspectHFile,
}

func init() {
	inspectHFileCmd.Flags().String("family", "", "Column family the file belongs to")
	inspectHFileCmd.Flags().String("file-id", "", "SortedFile id (without the .sf extension)")
}

func runInspectHFile(cmd *cobra.Command, args []string) error {
	dataDir, namespace, table, regionName, err := requiredFlags(cmd)
	if err != nil {
		return err
	}
	family, _ := cmd.Flags().GetString("family")
	fileID, _ := cmd.Flags().GetString("file-id")
	if family == "" {
		return argError(cmd, "--family is required")
	}
	if fileID == "" {
		return argError(cmd, "--file-id is required")
	}

	root := regionfs.NewRoot(dataDir)
	tableFS := root.Table(namespace, table)
	info, err := tableFS.ReadRegionInfo(regionName)
	if err != nil {
		fail("read region info: %v", err)
	}
	regionFS := tableFS.Region(info)

	r, size, err := regionFS.OpenFile(family, fileID)
	if err != nil {
		fail("open file: %v", err)
	}
	if closer, ok := r.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	h, err := sortedfile.Open(r, size, fileID, sortedfile.OpenOptions{})
	if err != nil {
		fail("open sorted file: %v", err)
	}
	defer h.Close()

	fmt.Fprintf(os.Stdout, "file:        %s\n", fileID)
	fmt.Fprintf(os.Stdout, "size:        %d bytes\n", size)
	fmt.Fprintf(os.Stdout, "cell count:  %d\n", h.CellCount())
	fmt.Fprintf(os.Stdout, "first key:   %x\n", h.FirstKey())
	fmt.Fprintf(os.Stdout, "last key:    %x\n", h.LastKey())
	return nil
}
