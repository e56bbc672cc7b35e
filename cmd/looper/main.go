package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/RyanBlaney/sonido-looper/internal/cli"
	"github.com/RyanBlaney/sonido-looper/logging"
	"github.com/RyanBlaney/sonido-looper/looper"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version  versionFlag `short:"V" help:"Show version information"`
	LogLevel string      `default:"info" enum:"debug,info,warn,error" env:"LOOPER_LOG_LEVEL" help:"Logging verbosity"`
	NoColor  bool        `env:"NO_COLOR" help:"Disable coloured log output"`

	Play   PlayCmd   `cmd:"" help:"Play a track with its best loop active. Ctrl+C once ends the loop, twice stops."`
	Points PointsCmd `cmd:"" default:"withargs" help:"List the discovered loop points."`
	Split  SplitCmd  `cmd:"" help:"Export intro, loop and outro sections as WAV files."`
	Extend ExtendCmd `cmd:"" help:"Render an extended version of a track by repeating its loop."`
	Txt    TxtCmd    `cmd:"" help:"Append the best loop points of each track to a text file."`
	JSON   JSONCmd   `cmd:"" name:"json" help:"Write all ranked loop points of each track as JSON."`
}

// versionFlag prints the styled version and exits before command
// arguments are validated.
type versionFlag bool

func (v versionFlag) BeforeReset(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("looper"),
		kong.Description("Find seamless loop points in music"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	setupLogging(cliArgs.LogLevel, cliArgs.NoColor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	err := kctx.Run(&runContext{ctx: ctx, cancel: cancel, interrupts: interrupts})
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// setupLogging sends all log lines to stderr so stdout carries only
// command output.
func setupLogging(levelName string, noColor bool) {
	colors := !noColor && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	logger := logging.NewDefaultLoggerWithWriters(os.Stderr, os.Stderr, colors)
	level, ok := logging.ParseLevel(levelName)
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	if !ok {
		logging.Warn("Unknown log level, using info", logging.Fields{"level": levelName})
	}
}

func reportError(err error) {
	var notFound *looper.LoopNotFoundError
	var loadErr *looper.AudioLoadError
	switch {
	case errors.As(err, &notFound):
		cli.PrintError(fmt.Sprintf("no suitable loop found in %s", notFound.Filename))
	case errors.As(err, &loadErr):
		cli.PrintError(fmt.Sprintf("could not load %s: %s", loadErr.Filename, loadErr.Reason))
	case errors.Is(err, context.Canceled):
		cli.PrintError("interrupted")
	default:
		cli.PrintError(err.Error())
	}
}
