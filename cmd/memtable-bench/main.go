// Command memtable-bench drives a MemTable the way a real ingestion
// pipeline would — a stream of tuples in, a flush out — and reports
// throughput and flush latency. Grounded on
// cmd/pebble's cobra-based layout (main.go wires subcommands, each
// subcommand file owns its own flags and Run).
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memtable-bench [command] (flags)",
	Short: "MemTable ingest/flush benchmarking tool",
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
