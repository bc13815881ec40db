package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synnergy-collab/nodecore/internal/config"
	"github.com/synnergy-collab/nodecore/internal/node"
	"github.com/synnergy-collab/nodecore/internal/secrand"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

func main() {
	rootCmd := &cobra.Command{Use: "nodecore"}
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var (
		configFile string
		listenAddr string
		pqNative   bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start a collaboration node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configFile, listenAddr, pqNative)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address for signaling and push")
	cmd.Flags().BoolVar(&pqNative, "pq-native", true, "use the native post-quantum crypto provider (disable for the non-PQ-safe fallback)")
	return cmd
}

func runStart(cmd *cobra.Command, configFile, listenAddr string, pqNative bool) error {
	rnd := secrand.System{}
	cfg, err := config.Load(configFile, rnd)
	if err != nil {
		return err
	}

	n, err := node.New(cfg, pqNative, timesource.System{}, rnd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.Start(ctx)

	srv := &http.Server{Addr: listenAddr, Handler: n.Mux()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(cmd.ErrOrStderr(), "http server error: %v\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	n.Stop()
	return srv.Shutdown(context.Background())
}
