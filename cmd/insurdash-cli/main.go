// Package main is a command-line client for the insurdash server.
//
// It replaces the web form: it sends match queries and new records, and prints
// the dataset and its aggregates.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/insurdash/internal/apiclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if apiclient.IsConnectError(err) {
			fmt.Fprintf(os.Stderr, "Error connecting to the backend: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "insurdash-cli: %v\n", err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	server  string
	timeout time.Duration
}

// client returns an API client bounded only by the --timeout context.
func (o *rootOptions) client() *apiclient.Client {
	return apiclient.New(o.server, &http.Client{})
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "insurdash-cli",
		Short:         "Query and extend the insurance charges dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.server, "server", apiclient.DefaultURL, "insurdash server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	root.AddCommand(
		newMatchCmd(opts),
		newAddCmd(opts),
		newRecordsCmd(opts),
		newStatsCmd(opts),
		newHistoryCmd(opts),
		newSchemaCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// withTimeout returns the command context bounded by the --timeout flag.
func (o *rootOptions) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
