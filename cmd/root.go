package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xtrafetch/internal/config"
	"github.com/sells-group/xtrafetch/internal/fetcher"
	"github.com/sells-group/xtrafetch/internal/xtra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xtrafetch",
	Short: "Download GPS XTRA assistance data from mirror servers",
	Long:  "Reads the XTRA_SERVER_n mirrors from gps.conf, tries each at most once per download starting from a randomly chosen server, and returns the first assistance data blob served.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if path, _ := cmd.Flags().GetString("gps-conf"); path != "" {
			cfg.XTRA.GPSConf = path
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("gps-conf", "", "path to gps.conf (overrides xtra.gps_conf)")
}

// newPool builds a mirror pool from the configured gps.conf.
func newPool(c *config.Config, opts ...xtra.Option) (*xtra.Pool, error) {
	props, err := config.LoadServers(c.XTRA.GPSConf)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:   c.HTTP.Timeout(),
		UserAgent: c.HTTP.UserAgent,
	})
	return xtra.NewPool(props, f, opts...), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
