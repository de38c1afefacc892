// lockerctl is a terminal client for the laundry locker backend: sign in,
// browse lockers and boxes, and manage your orders.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/app"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(out)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return execute(ctx, cfg, cmd, args, out)
}

func execute(ctx context.Context, cfg *config.Config, cmd command, args []string, out io.Writer) error {
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	client, err := app.NewClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	flags := pflag.NewFlagSet("lockerctl "+args[0], pflag.ContinueOnError)
	flags.SetOutput(out)
	return cmd.run(ctx, &env{client: client, out: out}, flags, args[1:])
}

type env struct {
	client *app.Client
	out    io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: lockerctl <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-10s %s\n", name, commands[name].summary)
	}
}

// describe turns the error kinds into something a person can act on.
func describe(err error) string {
	var (
		authErr    *apperr.AuthError
		statusErr  *apperr.StatusError
		capacity   *apperr.NoCapacityError
		transition *apperr.InvalidTransitionError
	)
	switch {
	case errors.As(err, &authErr):
		return fmt.Sprintf("%v (run `lockerctl login` to sign in again)", err)
	case apperr.IsNetwork(err):
		return fmt.Sprintf("%v (the backend is unreachable, try again)", err)
	case errors.As(err, &capacity), errors.As(err, &transition):
		return err.Error()
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return statusErr.Message
	}
	return err.Error()
}
