package engined

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dkvlabs/regiondb/lib/engine/blockcache"
	"github.com/dkvlabs/regiondb/lib/engine/bootstrap"
	"github.com/dkvlabs/regiondb/lib/engine/famstore"
	"github.com/dkvlabs/regiondb/lib/engine/metrics"
	"github.com/dkvlabs/regiondb/lib/engine/observer"
	"github.com/dkvlabs/regiondb/lib/engine/region"
	"github.com/dkvlabs/regiondb/lib/engine/regionfs"
	"github.com/dkvlabs/regiondb/lib/engine/replication"
	"github.com/dkvlabs/regiondb/lib/engine/scheduler"
	"github.com/dkvlabs/regiondb/lib/engine/wal"
	"github.com/dkvlabs/regiondb/lib/engineconfig"
	"github.com/dkvlabs/regiondb/lib/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultHeapBytes is the baseline engined scales hfile.block.cache.size
// and the global memstore watermarks against, absent a real "total node
// memory" figure to read it from — a documented simplification (spec.md
// §6 defines the fractions, not what they're a fraction of for a
// standalone node).
const defaultHeapBytes = 1 << 30 // 1 GiB

// node holds every long-lived component run wires together, so shutdown
// can close them in the right order.
type node struct {
	cfg      engineconfig.Config
	cache    *blockcache.Cache
	w        *wal.WAL
	sched    *scheduler.Scheduler
	registry *metrics.Registry
	tap      *replication.Tap

	storesMu  sync.Mutex
	allStores []*famstore.Store

	regions []*region.Region
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := engineconfig.FromViper(viper.GetViper())
	cfg.DataDir = viper.GetString("data-dir")
	cfg.LogLevel = viper.GetString("log-level")
	logging.Init(cfg.LogLevel)

	adminEndpoint := viper.GetString("admin-endpoint")
	cacheBytes := viper.GetInt64("block-cache-bytes")
	if cacheBytes <= 0 {
		cacheBytes = int64(float64(defaultHeapBytes) * cfg.BlockCacheSizeFraction)
	}
	watchInterval := viper.GetDuration("watch-interval")
	peers := viper.GetString("replication-peers")
	globalFamilyNames := viper.GetString("replication-global-families")

	n := &node{cfg: cfg}
	n.registry = metrics.NewRegistry()
	n.cache = blockcache.New(blockcache.Options{CapacityBytes: cacheBytes})

	root := regionfs.NewRoot(cfg.DataDir)
	w, err := wal.New(wal.Options{
		Opener:     root.WAL(),
		RollSize:   cfg.WALLogRollSize,
		RollPeriod: cfg.WALLogRollPeriod,
		Listener:   n.registry.WALListener(),
	})
	if err != nil {
		return fmt.Errorf("open WAL: %w", err)
	}
	n.w = w

	chain := observer.New(cfg.CoprocessorAbortOnError)
	coprocessorHooks := &observer.RegionHooksAdapter{Chain: chain}
	n.tap = buildTap(localPeerID(), peers, parseGlobalFamilies(globalFamilyNames))
	hooks := &engineHooks{coprocessors: coprocessorHooks, tap: n.tap}

	n.sched = scheduler.New(scheduler.Options{
		PerRegionFlushSize: cfg.RegionMemstoreFlushSize,
		HighWatermarkBytes: int64(cfg.GlobalMemstoreUpperLimit * float64(defaultHeapBytes)),
		HardCapBytes:       int64(cfg.GlobalMemstoreUpperLimit * float64(defaultHeapBytes) * 1.25),
		GlobalMemoryUsage:  n.globalMemoryUsage,
		WatchInterval:      watchInterval,
		Metrics:            n.registry,
	})
	n.sched.RunWALArchival(n.w, root.WAL())

	if err := n.openAllRegions(root, hooks); err != nil {
		return fmt.Errorf("open regions: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		n.registry.ReportScheduler(n.sched.Stats())
		n.registry.ReportBlockCache(n.cache.Stats())
		n.registry.WritePrometheus(w)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{Addr: adminEndpoint, Handler: mux}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return fmt.Errorf("admin endpoint: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	n.shutdown()
	return nil
}

// localPeerID is engined's own identity when it ships replicated edits as
// a source, e.g. for SinkManager's peerClusterID; derived from the host
// name rather than a separate flag, since no cluster-membership service
// assigns node identities in this scope.
func localPeerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "engined"
	}
	return host
}

func (n *node) globalMemoryUsage() int64 {
	n.storesMu.Lock()
	defer n.storesMu.Unlock()
	var total int64
	for _, s := range n.allStores {
		total += s.MemBufferSizeBytes()
	}
	return total
}

// openAllRegions discovers and opens every region already persisted under
// root, registering each family's Store with the scheduler so flush/
// compaction and WAL-archival watch them (spec.md §4.9).
func (n *node) openAllRegions(root *regionfs.Root, hooks region.Hooks) error {
	tables, err := bootstrap.DiscoverTables(n.cfg.DataDir)
	if err != nil {
		return err
	}
	for _, t := range tables {
		tableDir := filepath.Join(n.cfg.DataDir, "tables", t.Namespace, t.Table)
		encodedNames, err := bootstrap.DiscoverRegions(tableDir)
		if err != nil {
			return err
		}
		for _, encoded := range encodedNames {
			r, err := bootstrap.OpenRegion(bootstrap.OpenRegionOptions{
				Root:      root,
				Namespace: t.Namespace,
				Table:     t.Table,
				Encoded:   encoded,
				Config:    n.cfg,
				Cache:     n.cache,
				WAL:       n.w,
				Hooks:     hooks,
			})
			if err != nil {
				return fmt.Errorf("open region %s/%s/%s: %w", t.Namespace, t.Table, encoded, err)
			}
			n.registerRegion(r)
		}
	}
	return nil
}

func (n *node) registerRegion(r *region.Region) {
	n.regions = append(n.regions, r)
	n.storesMu.Lock()
	defer n.storesMu.Unlock()
	for _, s := range r.Stores() {
		n.sched.Register(r.ID(), s)
		n.allStores = append(n.allStores, s)
	}
}

// shutdown quiesces every region and closes the node's shared components
// in dependency order: regions flush and close before the scheduler that
// ran their compactions, which closes before the WAL it archives
// segments from.
func (n *node) shutdown() {
	for _, r := range n.regions {
		r.BeginClose()
		r.Flush(n.sched)
	}
	n.sched.Close()
	if err := n.w.Close(); err != nil {
		replicationLog.Warningf("close WAL: %v", err)
	}
	for _, r := range n.regions {
		r.MarkClosed()
	}
}
