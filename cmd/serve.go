package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/server"
)

var (
	srvAddr        string
	srvUploadRate  float64
	srvUploadBurst int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (upload, normalize, pareto, frequencies, metrics)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.ListenAddr = srvAddr
		}
		maxBytes := int64(cfg.MaxUploadMB) << 20
		store, err := dataset.NewStore(cfg.DataDir, maxBytes)
		if err != nil {
			return err
		}
		a, err := newAnalyzer(store)
		if err != nil {
			return err
		}
		srv := server.New(a, server.Options{
			MaxUploadBytes: maxBytes,
			UploadRate:     srvUploadRate,
			UploadBurst:    srvUploadBurst,
		}, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.Info("starting server", zap.String("data_dir", store.Dir()), zap.String("addr", cfg.ListenAddr))
		defer log.Sync() //nolint:errcheck
		return srv.Run(ctx, cfg.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", ":8000", "listen address (overrides config)")
	serveCmd.Flags().Float64Var(&srvUploadRate, "upload-rate", 0, "max uploads per second across clients (0 = unlimited)")
	serveCmd.Flags().IntVar(&srvUploadBurst, "upload-burst", 5, "upload burst size when --upload-rate is set")
}
