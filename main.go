package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/anvil-platform/releaseplan/internal/metrics"
)

func main() {
	os.Exit(run(signals.SetupSignalHandler(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code. The
// metrics textfile is written whether or not the command succeeded.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if werr := metrics.WriteTextfile(opts.metricsPath); werr != nil {
		err = errors.Join(err, fmt.Errorf("write metrics textfile: %w", werr))
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}
