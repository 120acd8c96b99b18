package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	savepointcmd "github.com/louisbranch/savepoint/internal/cmd/savepoint"
)

func main() {
	cfg, err := savepointcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SAVEPOINT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := savepointcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
