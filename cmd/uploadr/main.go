package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"uploadr/internal/services"
)

const (
	exitOK             = 0
	exitFailure        = 1
	exitAlreadyRunning = 2
	exitConfiguration  = 3
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, services.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.Is(err, services.ErrConfiguration):
		return exitConfiguration
	default:
		return exitFailure
	}
}
