package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API over HTTP",
	Long: `Start the HTTP API for starting runs, polling their status, downloading
generated projects as zip archives and managing run history.

Live progress is streamed to websocket clients on /ws/events. The server
stops on interrupt after in-flight runs finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Launcher == nil || Registry == nil {
			return fmt.Errorf("run launcher not initialized")
		}

		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.ServerAddr
		}
		if addr == "" {
			addr = ":5000"
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(ctx, Launcher, Registry, History, Bus)
		fmt.Fprintf(cmd.ErrOrStderr(), "adt serving on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr from .adtconfig)")
	rootCmd.AddCommand(serveCmd)
}
