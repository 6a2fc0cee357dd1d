// Package cmd provides common command line tools for the acmeshell binaries.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// FailOnError logs msg and err and exits if err is not nil.
func FailOnError(logger *zap.Logger, err error, msg string) {
	// If there wasn't an error, return
	if err == nil {
		return
	}

	// Otherwise, log the error and fail
	logger.Fatal(msg, zap.Error(err))
}

// NewLogger returns a development logger when verbose is set and
// a production logger otherwise.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	conf := zap.NewProductionConfig()
	conf.Encoding = "console"
	conf.DisableStacktrace = true
	return conf.Build()
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals returns a context that is cancelled when SIGTERM, SIGINT or
// SIGHUP is caught. The stop function releases the signal handler.
func CatchSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("caught signal", zap.String("signal", signalToName[sig]))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
