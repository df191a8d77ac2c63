// Package main is the command line interface of walletdb.
//
// walletdb keeps a list of multisig wallet descriptors in a JSONL file in the
// data directory. Commands mutate the list through the same persisted,
// observable collection an interactive client would use, so every change is
// logged as it is applied and written by the background saver before exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// command is a subcommand of walletdb.
type command struct {
	help string
	run  func(ctx context.Context, env *environment, args []string) error
	// readOnly commands do not load the list and never write the data file.
	readOnly bool
}

var commands = map[string]command{
	"list":   {help: "List the stored wallets", run: cmdList},
	"add":    {help: "Add a wallet", run: cmdAdd},
	"remove": {help: "Remove a wallet by ID", run: cmdRemove},
	"import": {help: "Add the wallets described in a YAML file", run: cmdImport},
	"export": {help: "Print the stored wallets as YAML", run: cmdExport},
	"watch":  {help: "Print the wallets every time the file changes", run: cmdWatch, readOnly: true},
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "walletdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	if flag.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}
	slog.SetDefault(newLogger(os.Stderr, ll))

	var env *environment
	var err error
	if cmd.readOnly {
		env, err = openReadOnly(*dataDir)
	} else {
		env, err = openEnvironment(ctx, *dataDir)
	}
	if err != nil {
		return err
	}
	runErr := cmd.run(ctx, env, flag.Args()[1:])

	// Pending saves are flushed even when interrupted.
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := env.close(closeCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// newLogger returns a tint logger writing to w.
func newLogger(w *os.File, level slog.Leveler) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			switch t := a.Value.Any().(type) {
			case string:
				if t == "" {
					return slog.Attr{}
				}
			case nil:
				return slog.Attr{}
			}
			return a
		},
	}))
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: walletdb [flags] <command> [args]\n\nCommands:\n")
	printCommands(out)
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].help)
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("walletdb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
