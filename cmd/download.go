package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xtrafetch/internal/xtra"
)

// errUnavailable is returned when no mirror produced data.
var errUnavailable = eris.New("assistance data unavailable")

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download XTRA assistance data once",
	Long: `Download assistance data from the configured XTRA mirrors.

Servers are tried in rotation starting from a random one; each is tried at
most once. The first HTTP 200 body is written to --output, or to stdout.

Examples:
  # Save to a file
  xtrafetch download --output xtra2.bin

  # Use a vendor gps.conf
  xtrafetch download --gps-conf /vendor/etc/gps.conf -o xtra2.bin`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("download"); err != nil {
		return err
	}

	pool, err := newPool(cfg)
	if err != nil {
		return eris.Wrap(err, "download: build pool")
	}

	res := pool.Download(ctx)
	if !res.OK() {
		zap.L().Warn("no XTRA server returned data",
			zap.Int("servers", len(pool.Servers())),
			zap.Int("attempts", len(res.Attempts)),
		)
		return errUnavailable
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if err := writeData(cmd.OutOrStdout(), outputPath, res); err != nil {
		return err
	}

	zap.L().Info("xtra data downloaded",
		zap.String("url", res.Attempts[len(res.Attempts)-1].URL),
		zap.Int("bytes", len(res.Data)),
		zap.String("output", outputPath),
	)
	return nil
}

// writeData writes the downloaded blob to path, or to out when path is empty.
func writeData(out io.Writer, path string, res xtra.Result) error {
	if path == "" {
		if _, err := out.Write(res.Data); err != nil {
			return eris.Wrap(err, "download: write stdout")
		}
		return nil
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return eris.Wrap(err, "download: write file")
	}
	return nil
}
