package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for torspider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torspider",
		Short: "Concurrent crawler for the web and Tor onion services",
		Long: `torspider crawls outward from a set of seed URLs with a pool of workers.

Links to new sites are followed before links deeper into a known site.
Hosts ending in .onion are fetched through a Tor SOCKS5 proxy, everything
else directly. Each page is fetched at most once per crawl and archived
to SQLite, MongoDB or PostgreSQL.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
