package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell <host.yaml>",
	Short: "Interactive session against the firmware simulator",
	Long: `Build the host description against the firmware simulator and read
commands interactively.

Commands:
  set <output> <0|1> [time]   schedule a change (default: 100ms after the last)
  update <output> <0|1>       change an output immediately
  advance <time>              run the simulator up to a print time
  state                       show latched register contents
  outputs                     list configured outputs
  help                        show this help
  quit                        leave the shell`,
	Args: cobra.ExactArgs(1),
}

func init() {
	shellCmd.RunE = runShell
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "srctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s, err := openSession(args[0], newLogger(rl.Stderr()))
	if err != nil {
		return err
	}
	defer s.Close()

	sh := &shell{session: s, out: rl.Stdout()}
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if done := sh.exec(line); done {
			return nil
		}
	}
}

type shell struct {
	session *session
	out     io.Writer
	last    float64
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(sh.out, shellCmd.Long)
	case "set", "s":
		err = sh.set(fields[1:])
	case "update", "u":
		err = sh.update(fields[1:])
	case "advance", "a":
		err = sh.advance(fields[1:])
	case "state":
		printRegisters(sh.out, sh.session)
	case "outputs":
		for _, name := range sh.session.host.OutputNames() {
			fmt.Fprintln(sh.out, name)
		}
	default:
		err = fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
	}
	return false
}

func parseLevel(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("invalid value %q: expected 0 or 1", s)
}

func (sh *shell) set(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: set <output> <0|1> [time]")
	}
	value, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	t := sh.last + 0.1
	if len(args) == 3 {
		if t, err = strconv.ParseFloat(args[2], 64); err != nil {
			return fmt.Errorf("invalid time %q", args[2])
		}
	}
	if err := sh.session.host.Set(args[0], t, value); err != nil {
		return err
	}
	if t > sh.last {
		sh.last = t
	}
	fmt.Fprintf(sh.out, "%s -> %s at %.3fs\n", args[0], args[1], t)
	return nil
}

func (sh *shell) update(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: update <output> <0|1>")
	}
	value, err := parseLevel(args[1])
	if err != nil {
		return err
	}
	return sh.session.host.Update(args[0], value)
}

func (sh *shell) advance(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: advance <time>")
	}
	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid time %q", args[0])
	}
	clock, err := sh.session.host.MCU.PrintTimeToClock(t)
	if err != nil {
		return err
	}
	sh.session.firmware.AdvanceTo(clock)
	printRegisters(sh.out, sh.session)
	return nil
}
