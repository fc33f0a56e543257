// Package main is the entry point for the POS sync engine.
package main

import (
	"log/slog"
	"os"

	"github.com/possync/possync/cmd/possync/app"
)

func main() {
	// Log to stderr so stdout stays clean for commands that print envelopes.
	slog.SetDefault(app.NewLogger(os.Stderr, app.LogLevel("")))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
