package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <host.yaml> <output>=<0|1>[@<time>]...",
	Short: "Schedule output changes on the firmware simulator",
	Long: `Schedule one or more output changes, run the firmware simulator up to
the last scheduled clock and print the latched register contents.

Changes without a time are scheduled 100ms after the previous one.

Examples:
  srctl set host.yaml case_light=1@0.5
  srctl set host.yaml fan=1@1.0 fan=0@2.5 case_light=0`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

type change struct {
	output string
	value  bool
	time   float64
}

func parseChange(arg string, prev float64) (change, error) {
	name, rest, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return change{}, fmt.Errorf("invalid change %q: expected <output>=<0|1>[@<time>]", arg)
	}
	valueText, timeText, hasTime := strings.Cut(rest, "@")

	c := change{output: name, time: prev + 0.1}
	switch valueText {
	case "0":
	case "1":
		c.value = true
	default:
		return change{}, fmt.Errorf("invalid value %q in %q: expected 0 or 1", valueText, arg)
	}
	if hasTime {
		t, err := strconv.ParseFloat(timeText, 64)
		if err != nil {
			return change{}, fmt.Errorf("invalid time %q in %q", timeText, arg)
		}
		c.time = t
	}
	return c, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0], newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer s.Close()

	var last float64
	for _, arg := range args[1:] {
		c, err := parseChange(arg, last)
		if err != nil {
			return err
		}
		if err := s.host.Set(c.output, c.time, c.value); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		if c.time > last {
			last = c.time
		}
	}

	clock, err := s.host.MCU.PrintTimeToClock(last)
	if err != nil {
		return err
	}
	s.firmware.AdvanceTo(clock)
	printRegisters(cmd.OutOrStdout(), s)
	return nil
}
