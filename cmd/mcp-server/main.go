package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/biostack-engine/internal/config"
	"github.com/biostack-engine/internal/mcp"
	"github.com/biostack-engine/internal/setup"
)

func main() {
	// Setup subcommand handles Claude Desktop registration
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI()
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}
	// Lite configuration from environment; stdio transports log to
	// stderr so stdout stays clean for the protocol stream.
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
