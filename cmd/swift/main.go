package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/swift-fca/swift/internal/fcaerr"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

const usage = `Usage: swift <command> [options] <source> [target]

Commands:
  convert   convert source into target, "-" for standard streams
  browse    print the first rows of source as the formula sees them
  export    print a statistics report of source
  version   print version information

Run "swift <command> -h" for the options of a command.
`

func main() {
	// Writes to a closed stdout return EPIPE instead of killing the process.
	signal.Notify(make(chan os.Signal, 1), syscall.SIGPIPE)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	code := exitCode(err)
	if err != nil && code != int(fcaerr.CodeBrokenPipe) {
		fmt.Fprintf(os.Stderr, "swift: %v\n", err)
	}
	os.Exit(code)
}

// run dispatches args to a command
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fcaerr.NewArgError("missing command")
	}

	cmd := &command{stdin: stdin, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "convert":
		return cmd.convert(ctx, args[1:])
	case "browse":
		return cmd.browse(ctx, args[1:])
	case "export":
		return cmd.export(ctx, args[1:])
	case "version":
		fmt.Fprintf(stdout, "swift %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fcaerr.NewArgError("unknown command %q", args[0])
	}
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, syscall.EPIPE) {
		return int(fcaerr.CodeBrokenPipe)
	}
	return int(fcaerr.CodeOf(err))
}
