// Package main is the entry point for gdbmi, an interactive GDB/MI client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/gdbmi/internal/app"
	"github.com/dshills/gdbmi/internal/integration/debug"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, dump, args := parseFlags()

	if dump {
		return runDump(args)
	}
	opts.Args = args

	application, err := app.New(opts, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
		application.Shutdown()
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- application.Run(ctx) }()

	console := newConsole(application.Config().Console.HistoryFile)
	defer console.Close()

	for {
		line, err := console.ReadLine("(gdbmi) ")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			break
		}
		if err := application.Execute(line); err != nil {
			if errors.Is(err, app.ErrQuit) || errors.Is(err, debug.ErrNotConnected) {
				break
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	cancel()
	application.Shutdown()
	if err := <-runErr; err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runDump converts MI transcripts to JSON, one document per line.
func runDump(files []string) int {
	if len(files) == 0 {
		files = []string{"-"}
	}

	failures := 0
	for _, name := range files {
		n, err := dumpFile(name, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		failures += n
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d lines could not be parsed\n", failures)
		return 2
	}
	return 0
}

// dumpFile converts one transcript ("-" is stdin) to w and returns the
// number of lines that did not parse.
func dumpFile(name string, w io.Writer) (int, error) {
	r := io.Reader(os.Stdin)
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}

	stats, err := app.Dump(r, w)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return stats.Failures, nil
}

func parseFlags() (app.Options, bool, []string) {
	var opts app.Options
	var dump, showVersion, showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.GDBPath, "gdb", "", "Debugger executable")
	flag.StringVar(&opts.Remote, "remote", "", "Connect to an MI server at host:port instead of starting the debugger")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Dump, "json", false, "Print command replies and notifications as JSON")
	flag.StringVar(&opts.JSONPath, "json-path", "", "Print only this gjson path of each command reply")
	flag.BoolVar(&opts.Watch, "watch", true, "Reload the configuration file when it changes")
	flag.BoolVar(&dump, "dump", false, "Convert MI output read from files or stdin to JSON and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "gdbmi - GDB Machine Interface client\n\n")
		fmt.Fprintf(os.Stderr, "Usage: gdbmi [options] [-- debugger args...]\n")
		fmt.Fprintf(os.Stderr, "       gdbmi -dump [transcript...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gdbmi -- ./prog                     Debug ./prog with gdb\n")
		fmt.Fprintf(os.Stderr, "  gdbmi -gdb gdb-multiarch -- fw.elf  Use another debugger\n")
		fmt.Fprintf(os.Stderr, "  gdbmi -remote localhost:4000        Attach to an MI server\n")
		fmt.Fprintf(os.Stderr, "  gdbmi -dump session.log             Convert a transcript to JSON\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("gdbmi %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts, dump, flag.Args()
}
