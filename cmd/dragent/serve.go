package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dragent "github.com/cjsstech/changi-dr-agent"
	httpadapter "github.com/cjsstech/changi-dr-agent/internal/adapters/http"
	"github.com/cjsstech/changi-dr-agent/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the engine in server mode, exposing the chat and admin APIs over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}

		svc, err := dragent.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Printf("Error initializing service: %v\n", err)
			os.Exit(1)
		}
		defer svc.Close()

		server := httpadapter.NewServer(
			svc.Executor, svc.Sessions,
			svc.Workflows, svc.Agents, svc.Prompts,
			httpadapter.WithLogger(svc.Logger),
		)

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: server.Router(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			svc.Logger.Info("Starting server", "addr", srv.Addr, "backend", cfg.Storage.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			svc.Logger.Info("Starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				svc.Logger.Error("Graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					svc.Logger.Error("Error killing server", "error", err)
				}
			}
			svc.Logger.Info("Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
