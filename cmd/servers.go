package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/xtrafetch/internal/config"
	"github.com/sells-group/xtrafetch/internal/xtra"
)

// serverEntry is one configured mirror in priority order.
type serverEntry struct {
	Key string `json:"key" yaml:"key"`
	URL string `json:"url" yaml:"url"`
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the configured XTRA mirrors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "json" && format != "yaml" {
			return eris.Errorf("servers: --format must be table, json or yaml (got %q)", format)
		}

		if err := cfg.Validate("servers"); err != nil {
			return err
		}

		props, err := config.LoadServers(cfg.XTRA.GPSConf)
		if err != nil {
			return eris.Wrap(err, "servers: load gps.conf")
		}

		return formatServers(cmd.OutOrStdout(), serverEntries(props), format)
	},
}

func init() {
	serversCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(serversCmd)
}

// serverEntries returns the configured mirrors in the order the pool uses.
func serverEntries(props map[string]string) []serverEntry {
	var entries []serverEntry
	for _, key := range xtra.ServerKeys {
		if url := props[key]; url != "" {
			entries = append(entries, serverEntry{Key: key, URL: url})
		}
	}
	return entries
}

// formatServers writes entries to out in the requested format.
func formatServers(out io.Writer, entries []serverEntry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []serverEntry{}
		}
		if err := enc.Encode(entries); err != nil {
			return eris.Wrap(err, "servers: encode json")
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close() //nolint:errcheck
		if entries == nil {
			entries = []serverEntry{}
		}
		if err := enc.Encode(entries); err != nil {
			return eris.Wrap(err, "servers: encode yaml")
		}
		return nil
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No XTRA servers configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tKEY\tURL")
	_, _ = fmt.Fprintln(w, "-\t---\t---")
	for i, e := range entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, e.Key, e.URL)
	}
	_ = w.Flush()
	return nil
}
