package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hotbridge-dev/hotbridge/internal/config"
	"github.com/hotbridge-dev/hotbridge/internal/dev"
)

func devCmd() *cobra.Command {
	var (
		port   int
		host   string
		wsMode bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development gateway",
		Long: `Start the development gateway with hot reload.

The gateway watches for file changes, rebuilds the handler module when
a change affects it, and swaps the new handler in atomically. Requests
keep hitting the last good handler while a rebuild is in flight.

Examples:
  hotbridge dev
  hotbridge dev --port=8080
  hotbridge dev --ws`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(port, host, wsMode)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from hotbridge.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from hotbridge.json)")
	cmd.Flags().BoolVar(&wsMode, "ws", false, "Run the handler as a supervised backend process")

	return cmd
}

func runDev(port int, host string, wsMode bool) error {
	// The loader shells out to the Go toolchain, so fail early if it is
	// missing.
	if _, err := exec.LookPath("go"); err != nil {
		errorMsg("Go is not installed or not in PATH")
		info("Install Go from https://go.dev/dl/")
		return err
	}

	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	// Apply command-line overrides.
	if port > 0 {
		cfg.Dev.Port = port
	}
	if host != "" {
		cfg.Dev.Host = host
	}
	if wsMode {
		cfg.Backend.WSMode = true
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()
	info("Gateway:  %s", cfg.DevURL())
	info("Entry:    %s", cfg.Entry)
	info("Prefix:   %s", cfg.Gateway.APIPrefix)
	if cfg.Backend.WSMode {
		info("Backend:  port %d (supervised)", cfg.Backend.Port)
	}
	fmt.Println()

	server := dev.NewServer(dev.ServerOptions{
		Config: cfg,
		OnReload: func(clients int) {
			if clients > 0 {
				success("Reloaded %d clients", clients)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n\n  Shutting down...")
		cancel()
		server.Stop()
	}()

	return server.Start(ctx)
}
