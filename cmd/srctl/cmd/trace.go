package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/trace"
)

var traceKind string

var traceCmd = &cobra.Command{
	Use:   "trace <file.cbor>",
	Short: "Dump a recorded command trace",
	Long: `Print every event of a CBOR trace written with --trace.

Examples:
  srctl trace session.cbor
  srctl trace session.cbor --kind command`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar(&traceKind, "kind", "", "only show events of this kind (config or command)")
}

func runTrace(cmd *cobra.Command, args []string) error {
	events, err := trace.ReadFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	session := ""
	for _, ev := range events {
		if traceKind != "" && ev.Kind != traceKind {
			continue
		}
		if ev.Session != session {
			session = ev.Session
			fmt.Fprintf(out, "# session %s\n", session)
		}
		if ev.Kind == "command" {
			fmt.Fprintf(out, "%6d %s %-7s min=%d req=%d q=%d %s\n",
				ev.Seq, ev.Time.Format("15:04:05.000"), ev.Kind, ev.MinClock, ev.ReqClock, ev.Queue, ev.Line)
			continue
		}
		fmt.Fprintf(out, "%6d %s %-7s %s\n", ev.Seq, ev.Time.Format("15:04:05.000"), ev.Kind, ev.Line)
	}
	return nil
}
