package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/taskboard/internal/cmd/client"
	serverrun "github.com/rzbill/taskboard/internal/cmd/server"
)

func main() {
	// one identity per process, shared by every transport and board
	env := &clientcmd.Env{Participant: uuid.NewString()}
	rootCmd := clientcmd.NewRoot(env)

	// relay start
	relayCmd := &cobra.Command{Use: "relay", Short: "Relay server commands"}
	relayStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the relay (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			if err := serverrun.Run(cmd.Context(), serverrun.Options{
				GRPCAddr: grpcAddr,
				HTTPAddr: httpAddr,
				Config:   env.Config,
				Logger:   env.Logger,
			}); err != nil {
				return fmt.Errorf("relay error: %w", err)
			}
			return nil
		},
	}
	relayStartCmd.Flags().String("grpc", "", "gRPC listen address (default relay.grpc_addr)")
	relayStartCmd.Flags().String("http", "", "HTTP listen address (default relay.http_addr)")
	relayCmd.AddCommand(relayStartCmd)
	rootCmd.AddCommand(relayCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
