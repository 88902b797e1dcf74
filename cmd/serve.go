package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loganalyzer/logview/pkg/logging"
	"github.com/loganalyzer/logview/pkg/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveDir  string
	servePoll bool
)

// serveCmd runs the development log server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve log files over the stream protocol",
	Long: `serve exposes the files below --dir on a WebSocket endpoint at /logs.
A subscription for account/cluster/tracking-id follows
<dir>/<account>/<cluster>/<tracking-id>.log, or <dir>/<tracking-id>.log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, closer, err := logging.Setup(cfg.General, false)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(serveDir, server.Options{Poll: servePoll, Logger: logger})
		return srv.ListenAndServe(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveDir, "dir", ".", "directory holding the log files")
	serveCmd.Flags().BoolVar(&servePoll, "poll", false, "poll files instead of using inotify")
}
