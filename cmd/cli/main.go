package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/qsubgo/internal/app"
	"github.com/vk/qsubgo/internal/cli"
	"github.com/vk/qsubgo/internal/hcl"
)

// main is the entrypoint for the qsubgo application.
func main() {
	// Minimal logger until the app configures its own.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Stdin, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the CLI, the HCL loader and the app together.
func run(ctx context.Context, outW, errW io.Writer, inR io.Reader, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	qsubgo, err := app.NewApp(ctx, outW, errW, inR, appConfig, hcl.NewLoader())
	if err != nil {
		return err
	}

	err = qsubgo.Run(ctx)
	if errors.Is(err, app.ErrAborted) {
		return &cli.ExitError{Code: 1, Message: "Aborted!"}
	}
	return err
}
