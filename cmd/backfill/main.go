// Package main runs the one-shot relationship backfill job.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	backfillcmd "github.com/louisbranch/leasehold/internal/cmd/backfill"
)

func main() {
	cfg, err := backfillcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[BACKFILL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := backfillcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
}
