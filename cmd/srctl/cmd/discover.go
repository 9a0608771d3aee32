package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List USB-attached controllers",
	Long: `Enumerate USB devices and list those matching known controller and
serial bridge VID/PID pairs.

Examples:
  srctl discover
  srctl discover --timeout 2s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Second, "enumeration timeout")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
	defer cancel()

	devices, err := mcu.DiscoverUSB(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No controllers found")
		return nil
	}
	for i, d := range devices {
		fmt.Fprintf(out, "%d: %s\n", i, d.Label())
	}
	return nil
}
