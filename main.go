package main

import (
	"log/slog"
	"os"

	"github.com/civicdata/survload/cmd"
	"github.com/lmittmann/tint"
)

func main() {
	logHandler := tint.NewHandler(os.Stderr, nil)
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	cmd.Execute()
}
