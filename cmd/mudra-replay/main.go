// Command mudra-replay feeds a recorded classifier trace through the
// confirmer and prints the events it raises.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/replay"
	"github.com/ayusman/mudra/internal/tui"
	"github.com/ayusman/mudra/testdata"
)

type options struct {
	trace   string
	example string
	list    bool
	asJSON  bool
	useTUI  bool
	cfg     confirm.Config
}

func parseFlags(args []string) (options, error) {
	opts := options{cfg: confirm.DefaultConfig()}

	fs := flag.NewFlagSet("mudra-replay", flag.ContinueOnError)
	fs.StringVar(&opts.trace, "trace", "", "CSV trace file (class,confidence,hands); - reads stdin")
	fs.StringVar(&opts.example, "example", "", "built-in trace name")
	fs.BoolVar(&opts.list, "list", false, "list built-in traces")
	fs.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&opts.useTUI, "tui", false, "step through the trace interactively")
	fs.IntVar(&opts.cfg.RequiredStreak, "streak", opts.cfg.RequiredStreak, "consecutive frames needed to confirm a sign")
	fs.Float64Var(&opts.cfg.MinConfidence, "min-confidence", opts.cfg.MinConfidence, "minimum classifier confidence in [0,1]")
	fs.IntVar(&opts.cfg.CooldownFrames, "cooldown", opts.cfg.CooldownFrames, "frames ignored after a confirmation")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if !opts.list && (opts.trace == "") == (opts.example == "") {
		return options{}, fmt.Errorf("exactly one of -trace or -example is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(2)
	}

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.list {
		for _, name := range testdata.Traces() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	name, frames, err := loadFrames(opts, stdin)
	if err != nil {
		return err
	}

	if opts.useTUI {
		m, err := tui.New(name, opts.cfg, frames, nil)
		if err != nil {
			return err
		}
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}

	res, err := replay.Run(opts.cfg, frames, nil)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(stdout, name, res)
	return nil
}

func loadFrames(opts options, stdin io.Reader) (string, []replay.Frame, error) {
	var (
		name string
		r    io.Reader
	)

	switch {
	case opts.example != "":
		data, err := testdata.Trace(opts.example)
		if err != nil {
			return "", nil, fmt.Errorf("unknown example %q (have %s)", opts.example, strings.Join(testdata.Traces(), ", "))
		}
		name, r = opts.example, bytes.NewReader(data)
	case opts.trace == "-":
		name, r = "stdin", stdin
	default:
		f, err := os.Open(opts.trace)
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		name, r = opts.trace, f
	}

	frames, err := replay.ParseTrace(r)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", name, err)
	}
	return name, frames, nil
}

func printResult(w io.Writer, name string, res replay.Result) {
	fmt.Fprintf(w, "%s: %d frames, %d confirmations\n", name, res.Frames, res.Confirmations())
	for _, e := range res.Events {
		switch e.Kind {
		case replay.KindConfirmed:
			fmt.Fprintf(w, "  frame %4d  confirmed  %-10s conf=%.2f streak=%d\n", e.Frame, e.Class, e.Confidence, e.Streak)
		default:
			fmt.Fprintf(w, "  frame %4d  reset      %s\n", e.Frame, e.Class)
		}
	}

	s := res.Final
	fmt.Fprintf(w, "final: class=%q streak=%d last=%q cooldown=%d confirmed=%t\n",
		s.CurrentClass, s.StreakLength, s.LastConfirmedClass, s.CooldownRemaining, s.IsConfirmed)
}
