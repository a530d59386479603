package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/chat-organizer/api"
	"github.com/theimaginaryfoundation/chat-organizer/organize"
)

var (
	serveAddr       string
	serveEncKeyPath string
	serveTempDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the organize HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :5000)")
	serveCmd.Flags().StringVar(&serveEncKeyPath, "enc-key-path", "", "path of the key-encryption secret file")
	serveCmd.Flags().StringVar(&serveTempDir, "temp-dir", "", "directory for uploaded export spool files (default: system temp)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = serveAddr
	}
	if cmd.Flags().Changed("enc-key-path") {
		cfg.EncKeyPath = serveEncKeyPath
	}
	if cmd.Flags().Changed("temp-dir") {
		cfg.TempDir = serveTempDir
	}

	secret, err := api.LoadOrCreateSecret(cfg.EncKeyPath)
	if err != nil {
		return err
	}
	keys, err := api.NewKeyStore(secret, api.KeyTTL)
	if err != nil {
		return err
	}

	jobs := organize.NewJobStore()
	runner := organize.NewRunner(jobs, slog.Default())
	handler := api.NewHandler(jobs, keys, runner, slog.Default(), cfg.TempDir)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
