package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftdesk/craftdesk/internal/api"
	"github.com/craftdesk/craftdesk/internal/bank"
	"github.com/craftdesk/craftdesk/internal/chat"
	"github.com/craftdesk/craftdesk/internal/config"
	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/invoice"
	"github.com/craftdesk/craftdesk/internal/middleware"
	"github.com/craftdesk/craftdesk/internal/prompt"
	"github.com/craftdesk/craftdesk/internal/repository"
	"github.com/craftdesk/craftdesk/internal/scheduler"
	"github.com/craftdesk/craftdesk/internal/ticket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := gateway.NewRegistry(cfg.Gateways)
	if err != nil {
		return err
	}

	// The chat connector runs as its own process and drives this service
	// over the ticket/prompt APIs; headless runs get the logging platform.
	platform := chat.NewLogPlatform()

	tickets := repository.NewTicketRepository(db)
	prompts := repository.NewPromptRepository(db)
	quotes := repository.NewQuoteRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	timers := repository.NewArchiveTimerRepository(db)
	cooldowns := repository.NewCooldownRepository(db)
	banks := repository.NewBankRepository(db)
	cuts := repository.NewServiceCutRepository(db)

	ledger := invoice.NewLedger(invoices, tickets, registry, platform,
		invoice.WithClientRole(cfg.Settings.ClientRole))
	dispatcher := invoice.NewDispatcher(registry, invoices, ledger)
	engine := prompt.NewEngine(cfg, prompts, tickets, platform)
	bankSvc := bank.NewService(banks, cuts, cfg.Tickets.ServiceCutPercent)

	manager := ticket.NewManager(cfg, ticket.Deps{
		Tickets:   tickets,
		Prompts:   prompts,
		Quotes:    quotes,
		Invoices:  invoices,
		Timers:    timers,
		Cooldowns: cooldowns,
		Platform:  platform,
		Engine:    engine,
		Ledger:    ledger,
		Bank:      bankSvc,
	})
	manager.InstallFinalizer()

	sched := scheduler.NewService(cfg, manager, ledger, registry, invoices, cooldowns)
	if err := sched.Start(); err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter()
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.NewRouter(dispatcher, registry, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", cfg.HTTP.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Printf("[serve] received %s, shutting down", sig)
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("[serve] scheduler did not drain in time: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}
