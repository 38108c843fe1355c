package regionadmin

import (
	"fmt"

	"github.com/dkvlabs/regiondb/cmd/util"
	"github.com/dkvlabs/regiondb/lib/catalog"
	"github.com/dkvlabs/regiondb/lib/catalog/catalogstore"
	"github.com/dkvlabs/regiondb/lib/db"
	"github.com/dkvlabs/regiondb/lib/db/engines/maple"
	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engineerrors"
	"github.com/dkvlabs/regiondb/lib/lockmgr"
	"github.com/dkvlabs/regiondb/lib/store/lstore"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a region at a row key into two daughter regions",
	RunE:  runSplit,
}

func init() {
	splitCmd.Flags().String("split-key", "", util.WrapString("Row key at which to split, taken literally as bytes"))
	splitCmd.Flags().String("catalog-dir", "", util.WrapString("Directory for the Catalog's pebble backing store (default: <data-dir>/catalog)"))
}

func runSplit(cmd *cobra.Command, args []string) error {
	dataDir, namespace, table, regionName, err := requiredFlags(cmd)
	if err != nil {
		return err
	}
	splitKey, _ := cmd.Flags().GetString("split-key")
	if splitKey == "" {
		return argError(cmd, "--split-key is required")
	}
	catalogDir, _ := cmd.Flags().GetString("catalog-dir")
	if catalogDir == "" {
		catalogDir = dataDir + "/catalog"
	}

	r, err := openRegion(dataDir, namespace, table, regionName)
	if err != nil {
		fail("open region: %v", err)
	}

	cs, err := catalogstore.Open(catalogDir)
	if err != nil {
		fail("open catalog store: %v", err)
	}
	defer cs.Close()

	locks := lockmgr.NewLockManager(lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }))
	cat := catalog.New(cs, locks)

	if err := ensureRegistered(cat, r.Info()); err != nil {
		fail("register parent in catalog: %v", err)
	}

	txn := region.SplitTransaction{
		FS:      regionfs.NewRoot(dataDir).Table(namespace, table),
		Catalog: cat,
	}
	lower, upper, err := txn.Split(r, []byte(splitKey))
	if err != nil {
		fail("split: %v", err)
	}

	fmt.Printf("split region %s into %s, %s\n", r.ID(), lower.EncodedName, upper.EncodedName)
	return nil
}

// ensureRegistered makes the offline split tool idempotent against a
// Catalog that has never seen this region before: the running server
// normally registers a region when it first creates it, but regionadmin is
// invoked standalone against an on-disk region, so it registers on demand
// instead of requiring an operator to run a separate bootstrap step.
func ensureRegistered(cat *catalog.Catalog, info region.Info) error {
	if _, err := cat.GetTable(info.Namespace, info.Table); err != nil {
		if !engineerrors.Is(err, engineerrors.KindNotFound) {
			return err
		}
		if err := cat.CreateTable(info.Namespace, info.Table); err != nil {
			return err
		}
	}
	if _, err := cat.GetRegion(info.EncodedName); err != nil {
		if !engineerrors.Is(err, engineerrors.KindNotFound) && !engineerrors.Is(err, engineerrors.KindUnknownRegion) {
			return err
		}
		return cat.RegisterRegion(info)
	}
	return nil
}
