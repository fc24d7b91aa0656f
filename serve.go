package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"gofolio/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if cfg.Server.Debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		app, err := NewApp(context.Background(), cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      app.Router.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Server is listening",
				logger.String("addr", server.Addr),
				logger.String("store", cfg.Store.Driver),
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return err
		}
		log.Info("Server is shutting down")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			return err
		}

		log.Info("Server stopped")
		return nil
	},
}
