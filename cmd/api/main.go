package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sangkips/coopmart-api/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Serve(ctx)
	stop()
	if err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
