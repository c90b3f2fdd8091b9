// Command rescribe converts documents between formats through the Rescribe
// document model. It also lists formats, inspects documents and bundles, and
// serves the REST API.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/logging"

	// Register the built-in formats with plugins.Default
	_ "github.com/FocuswithJustin/Rescribe/internal/embedded"
)

const version = "0.1.0"

// CLI defines the command-line interface for rescribe.
type CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"RESCRIBE_LOG_LEVEL" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (auto, text, json); auto picks text on a terminal" default:"auto" env:"RESCRIBE_LOG_FORMAT" enum:"auto,text,json"`

	Convert ConvertCmd `cmd:"" help:"Convert a document to another format"`
	Formats FormatsCmd `cmd:"" help:"List supported formats"`
	Inspect InspectCmd `cmd:"" help:"Summarize a document or a bundle archive"`
	Check   CheckCmd   `cmd:"" help:"Verify that a format reproduces a document through a round trip"`
	Serve   ServeCmd   `cmd:"" help:"Start the REST API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// env carries the process streams and format registry into commands.
type env struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Registry *plugins.Registry
}

// warnf prints a non-fatal notice to stderr.
func (e *env) warnf(format string, args ...any) {
	fmt.Fprintf(e.Stderr, "warning: "+format+"\n", args...)
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.Stdout, "rescribe version %s\n", version)
	return nil
}

// run parses args, executes the selected command and returns the exit code.
func run(args []string, e *env) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("rescribe"),
		kong.Description("Rescribe - universal document interchange"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(e.Stdout, e.Stderr),
		kong.Exit(func(code int) { exitCode = code }),
		kong.Bind(e),
	)
	if err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 1
	}

	if err := setupLogging(cli.LogLevel, cli.LogFormat, e.Stderr); err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 1
	}

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(e.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging points the global logger at w. The auto format is text when
// w is a terminal and JSON otherwise.
func setupLogging(level, format string, w io.Writer) error {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}

	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}
	logFormat, err := logging.ParseFormat(format)
	if err != nil {
		return err
	}

	logging.InitLoggerWriter(w, lvl, logFormat)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], &env{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Registry: plugins.Default,
	}))
}
