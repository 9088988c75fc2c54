package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/enex/errcapture/cmd/errcapture/command"
)

func main() {
	if err := command.Root().ExecuteContext(context.Background()); err != nil {
		slog.Error("errcapture failed", "error", err)
		os.Exit(1)
	}
}
