package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"github.com/MarcoPoloResearchLab/register/internal/config"
	"github.com/MarcoPoloResearchLab/register/internal/database"
	"github.com/MarcoPoloResearchLab/register/internal/logging"
	"github.com/MarcoPoloResearchLab/register/internal/realtime"
	"github.com/MarcoPoloResearchLab/register/internal/register"
	"github.com/MarcoPoloResearchLab/register/internal/server"
	"github.com/MarcoPoloResearchLab/register/internal/view"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type registerRuntime struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	store  *appointments.Store
}

func openRuntime() (*registerRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(database.Config{
		Path:    appConfig.DatabasePath,
		Name:    appConfig.DatabaseName,
		Version: appConfig.DatabaseVersion,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	store, err := appointments.NewStore(appointments.StoreConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &registerRuntime{config: appConfig, logger: logger, db: db, store: store}, nil
}

func (r *registerRuntime) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			r.logger.Warn("database close failed", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

func runServer(ctx context.Context) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	dispatcher := realtime.NewDispatcher(0)
	synchronizer := view.NewSynchronizer(view.SynchronizerConfig{
		Publisher:  dispatcher,
		IDProvider: view.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     logger,
	})
	coordinator, err := register.NewCoordinator(register.CoordinatorConfig{
		Store:              rt.store,
		Allocator:          appointments.NewAllocator(),
		View:               synchronizer,
		Clock:              time.Now,
		Logger:             logger,
		MaxParallelDeletes: rt.config.BulkMaxParallel,
	})
	if err != nil {
		return err
	}
	if err := coordinator.Load(ctx); err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Coordinator:       coordinator,
		View:              synchronizer,
		Realtime:          dispatcher,
		RegisterName:      rt.config.DatabaseName,
		HeartbeatInterval: rt.config.HeartbeatInterval,
		Clock:             time.Now,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runPrint(ctx context.Context, out io.Writer) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	return view.WritePrintSheet(out, records)
}

func runExport(ctx context.Context, out io.Writer, path string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	write := func(writer io.Writer) error {
		return view.WriteExport(writer, rt.config.DatabaseName, time.Now(), records)
	}
	if path == "" {
		err = write(out)
	} else {
		err = writeExportFile(path, write)
	}
	if err != nil {
		return err
	}
	rt.logger.Info("register exported", zap.Int("count", len(records)), zap.String("path", path))
	return nil
}

// writeExportFile writes the export to path and reports a failed close.
func writeExportFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	return writeAndClose(file, write)
}

func writeAndClose(target io.WriteCloser, write func(io.Writer) error) (err error) {
	defer func() {
		if closeErr := target.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", closeErr)
		}
	}()
	return write(target)
}
