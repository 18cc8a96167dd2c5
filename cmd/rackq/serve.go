package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostgrid/rackq/internal/inventory"
	"github.com/hostgrid/rackq/internal/pkg/rackql"
	"github.com/hostgrid/rackq/internal/server"
)

func newServeCmd(inventoryPath *string, verbosity *int) *cobra.Command {
	var (
		port      int
		tokenHash string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `serve loads the inventory snapshot once and answers POST /api/query
requests until stopped. With --watch the snapshot is reloaded whenever the
file changes on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenHash == "" {
				tokenHash = os.Getenv("RACKQ_TOKEN_HASH")
			}
			return runServe(cmd, *inventoryPath, port, tokenHash, watch, *verbosity)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8476, "HTTP port to listen on")
	cmd.Flags().StringVar(&tokenHash, "token-hash", "", "bcrypt hash of the accepted bearer token (or RACKQ_TOKEN_HASH env); empty disables auth")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the snapshot when the file changes")
	return cmd
}

func runServe(cmd *cobra.Command, inventoryPath string, port int, tokenHash string, watch bool, verbosity int) error {
	logger := newLogger(verbosity)

	store, err := inventory.Load(inventoryPath)
	if err != nil {
		return printedErr(cmd, fmt.Errorf("load inventory: %w", err))
	}
	logger.Info("inventory loaded", "path", inventoryPath, "entities", store.Len())

	srv := server.NewQueryServer(store, rackql.NewRegistry(), []byte(tokenHash), logger)
	if watch {
		if err := srv.Watch(inventoryPath); err != nil {
			return printedErr(cmd, fmt.Errorf("watch inventory: %w", err))
		}
		logger.Info("watching snapshot for changes", "path", inventoryPath)
	}

	addr := fmt.Sprintf(":%d", port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return printedErr(cmd, err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return printedErr(cmd, fmt.Errorf("shutdown: %w", err))
	}
	return nil
}
