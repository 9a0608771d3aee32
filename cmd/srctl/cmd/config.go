package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/config"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/host"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
)

var configRaw bool

var configCmd = &cobra.Command{
	Use:   "config <host.yaml>",
	Short: "Print the firmware configuration stream",
	Long: `Build every shift register and output in the host description and
print the configuration commands in the order the firmware receives them.

Examples:
  srctl config host.yaml         # Pin names resolved to numbers
  srctl config host.yaml --raw   # Pin names as written`,
	Args: cobra.ExactArgs(1),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configRaw, "raw", false, "print commands before enumeration resolution")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	rec := mcu.NewRecorder()
	h, err := host.Build(cfg, rec, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if configRaw {
		for _, line := range h.MCU.ConfigCmds() {
			fmt.Fprintln(out, line)
		}
		return nil
	}
	for _, line := range rec.Lines(mcu.KindConfig) {
		fmt.Fprintln(out, line)
	}
	return nil
}
