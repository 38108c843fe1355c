// Package engined boots a single-node storage engine: it discovers and
// opens every region already persisted under a data directory, wires the
// block cache, WAL, scheduler and replication tap around them, and serves
// an HTTP admin/metrics endpoint until asked to stop. It follows the same
// viper/godotenv/cobra wiring as the teacher's cmd/serve, generalized from
// one RPC server's config to an engine node's.
package engined

import (
	"strings"

	"github.com/dkvlabs/regiondb/cmd/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var RootCmd = &cobra.Command{
	Use:     "engined",
	Short:   "Start a single-node storage engine",
	Long:    `engined opens every region under --data-dir, wires the scheduler, block cache, WAL and replication tap around them, and serves an HTTP admin/metrics endpoint. Configuration can be set via flags or DKV_-prefixed environment variables.`,
	PreRunE: processConfig,
	RunE:    run,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().String("data-dir", "data", util.WrapString("Root data directory holding tables/regions (regionfs.Root layout)"))
	RootCmd.PersistentFlags().String("log-level", "info", util.WrapString("Log level (debug, info, warn, error)"))
	RootCmd.PersistentFlags().String("admin-endpoint", "0.0.0.0:9090", util.WrapString("Address the admin/metrics HTTP endpoint listens on"))
	RootCmd.PersistentFlags().Int64("block-cache-bytes", 0, util.WrapString("Block cache capacity in bytes; 0 derives it from hfile.block.cache.size against a 1 GiB baseline"))
	RootCmd.PersistentFlags().String("replication-peers", "", util.WrapString("Comma-separated list of peer server IDs to replicate globally-scoped edits to; empty disables replication"))
	RootCmd.PersistentFlags().String("replication-global-families", "", util.WrapString("Comma-separated list of column family names whose edits carry replicationScope=GLOBAL"))
	RootCmd.PersistentFlags().Duration("watch-interval", 0, util.WrapString("Scheduler watermark/WAL-archival poll interval; 0 uses the scheduler's default"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// initConfig mirrors cmd/serve's initConfig: load .env files, then bind
// DKV_-prefixed environment variables on top of flag defaults.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
