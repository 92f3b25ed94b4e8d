package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/events"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/handler"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/integrity"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/config"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/httputil"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/reliefhub/reliefhub-backend/pkg/messaging"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(migrateFirst bool) error {
	// Fails fast in production if required config is missing
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting ReliefHub")

	if migrateFirst {
		if err := database.MigrateUp(cfg.Migrations.Dir, cfg.Database.ConnURL(), log, false); err != nil {
			return err
		}
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.HealthCheck{"database": db.Health}

	// A nil notifier turns status events into no-ops
	var notify service.Notifier
	if cfg.RabbitMQ.Disabled {
		log.Warn().Msg("rabbitmq disabled, status events will not be published")
	} else {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer rmq.Close()
		checks["rabbitmq"] = rmq.Health

		publisher, err := events.NewLogisticsEventPublisher(rmq, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		notify = publisher
	}

	svc, err := buildServices(db, cfg, notify, log)
	if err != nil {
		return err
	}
	svc.Health = checks

	if !cfg.Sweeper.Disabled && cfg.Sweeper.Interval > 0 {
		sweeper := service.NewExpirySweeper(svc.Lots, svc.Assets, cfg.Sweeper.Interval, log)
		sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	router := handler.NewRouter(svc, httputil.NewTokens(&cfg.JWT), cfg.Server.CORSOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

// buildServices wires the Postgres repositories into the services
func buildServices(db *database.DB, cfg *config.Config, notify service.Notifier, log *logger.Logger) (handler.Services, error) {
	threshold, err := cfg.Governance.Threshold()
	if err != nil {
		return handler.Services{}, err
	}

	resources := repository.NewResourceRepository(db)
	transactions := repository.NewTransactionRepository(db)
	donations := repository.NewDonationRepository(db)
	lots := repository.NewLotRepository(db)
	assets := repository.NewAssetRepository(db)
	locations := repository.NewLocationRepository(db)
	orders := repository.NewDispatchRepository(db)
	auditLogs := repository.NewAuditLogRepository(db)
	templates := repository.NewLabelTemplateRepository(db)
	stocktakes := repository.NewStocktakeRepository(db)

	integ := integrity.NewService(cfg.Integrity.OrgCode)
	policy := permissions.NewSensitivePolicy(threshold, cfg.Governance.DispatchCanReadSensitive)

	svc := handler.Services{Integrity: integ}
	svc.Ledger = service.NewLedgerService(db, resources, transactions, donations, log)
	svc.Approval = service.NewApprovalService(db, resources, transactions, notify, cfg.Governance.RejectReasonMinLength, log)
	svc.Lots = service.NewLotService(db, lots, resources, integ, log)
	svc.Assets = service.NewAssetService(db, assets, resources, locations, integ, log)
	svc.Locations = service.NewLocationService(locations, integ, log)
	svc.Dispatch = service.NewDispatchService(db, orders, svc.Ledger, notify, log)
	svc.Audit = service.NewAuditLogService(auditLogs, log)
	svc.Sensitive = service.NewSensitiveService(transactions, assets, donations, svc.Audit, policy, log)
	svc.Labels = service.NewLabelService(db, lots, assets, resources, templates, svc.Audit, log)
	svc.Stocktake = service.NewStocktakeService(db, stocktakes, resources, assets, svc.Ledger, svc.Assets, log)
	return svc, nil
}
