package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShift/pkg/config"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/firmware"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/host"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/mcu"
	"github.com/OpenTraceLab/OpenTraceShift/pkg/trace"
)

var (
	// Global flags
	verbose   bool
	tracePath string
)

var rootCmd = &cobra.Command{
	Use:   "srctl",
	Short: "Shift register output driver tool",
	Long: `A host-side tool for digital outputs driven through 74HC595-style shift
registers. It builds the firmware configuration for a host description,
runs output changes against the firmware simulator, and lists USB
controllers.

Examples:
  srctl config host.yaml                       # Print the firmware config stream
  srctl set host.yaml case_light=1@0.5         # Schedule a change and show register state
  srctl shell host.yaml --trace session.cbor   # Interactive session, traced
  srctl trace session.cbor                     # Dump a recorded trace
  srctl discover                               # List USB controllers`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "record the command stream to a CBOR trace file")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is a host bound to the firmware simulator.
type session struct {
	host     *host.Host
	firmware *firmware.Firmware
	tracer   *trace.Writer
}

func (s *session) Close() error {
	if s.tracer != nil {
		return s.tracer.Close()
	}
	return nil
}

// openSession loads the config at path and runs setup against a fresh
// firmware simulator, tracing when --trace is set.
func openSession(path string, logger *slog.Logger) (*session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	s := &session{firmware: firmware.New(logger)}
	var sender mcu.Sender = s.firmware
	if tracePath != "" {
		s.tracer, err = trace.Create(tracePath, s.firmware)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		sender = s.tracer
		logger.Debug("tracing", "path", tracePath, "session", s.tracer.Session())
	}

	s.host, err = host.Build(cfg, sender, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func printRegisters(w io.Writer, s *session) {
	for _, chip := range s.host.Chips() {
		sr, ok := s.firmware.Register(chip.OID())
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s (oid %d):", chip.Name(), chip.OID())
		for i := len(sr.Latched) - 1; i >= 0; i-- {
			fmt.Fprintf(w, " %08b", sr.Latched[i])
		}
		fmt.Fprintln(w)
	}
	if down, reason := s.firmware.IsShutdown(); down {
		fmt.Fprintf(w, "firmware shutdown: %s\n", reason)
	}
}
