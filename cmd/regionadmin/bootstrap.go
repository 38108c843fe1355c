package regionadmin

import (
	"fmt"

	"github.com/dkvlabs/regiondb/lib/engine/bootstrap"
	"github.com/dkvlabs/regiondb/lib/engine/keycodec"
	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
)

// noopWAL satisfies region.WAL for offline admin regions: flush, compact,
// and split never call Region.Put/Delete, so Append is never actually
// exercised, but region.Options requires a non-nil WAL.
type noopWAL struct{}

func (noopWAL) Append(string, []keycodec.Cell, wal.Durability) (uint64, error) {
	return 0, fmt.Errorf("regionadmin: WAL append is not available outside a running server")
}

func openRegion(dataDir, namespace, table, encoded string) (*region.Region, error) {
	root := regionfs.NewRoot(dataDir)
	return bootstrap.OpenRegion(bootstrap.OpenRegionOptions{
		Root:      root,
		Namespace: namespace,
		Table:     table,
		Encoded:   encoded,
		Config:    engineconfig.Default(),
		WAL:       noopWAL{},
	})
}
