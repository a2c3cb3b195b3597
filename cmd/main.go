package main

import (
	"context"
	"fmt"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/yungbote/tasktracker-backend/internal/app"
)

const shutdownTimeout = 30 * time.Second

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	a.Start()

	go func() {
		if err := a.Run(); err != nil {
			a.Log.Fatal("Server failed", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"tasktracker": func(ctx context.Context) error {
				a.Log.Info("Graceful shutdown initiated...")
				return a.Shutdown(ctx)
			},
		},
	)
	os.Exit(<-wait)
}
