package main

import (
	"log/slog"
	"os"

	"yearend/internal/app/server"
	"yearend/internal/platform/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := server.Run(config.Load()); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
