package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salonlabs/billing-backend-go/internal/config"
	appHTTP "github.com/salonlabs/billing-backend-go/internal/handler/http"
	"github.com/salonlabs/billing-backend-go/internal/pkg/cron"
	"github.com/salonlabs/billing-backend-go/internal/pkg/database"
	"github.com/salonlabs/billing-backend-go/internal/pkg/jwt"
	"github.com/salonlabs/billing-backend-go/internal/pkg/stripe"
	"github.com/salonlabs/billing-backend-go/internal/repository/postgresql"
	billingService "github.com/salonlabs/billing-backend-go/internal/service/billing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "salonlabs-billing"),
	)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	accountRepo := postgresql.NewAccountRepository(db)
	planCatalog := postgresql.NewPlanCatalog(db)
	eventLedger := postgresql.NewEventLedger(db)
	txManager := postgresql.NewTxManager(db)

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	gateway := stripe.NewGateway(cfg.Stripe)
	webhookVerifier := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret)

	billingSvc := billingService.NewBillingService(
		accountRepo,
		planCatalog,
		eventLedger,
		gateway,
		txManager,
		cfg.Billing,
		logger,
	)

	billingHandler := appHTTP.NewBillingHandler(billingSvc, webhookVerifier)
	router := appHTTP.NewRouter(jwtService, billingHandler)

	scheduler := cron.NewScheduler(logger)
	cron.NewBillingJobs(billingSvc).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	port := fmt.Sprintf(":%d", cfg.App.Port)
	server := &http.Server{Addr: port, Handler: router}

	go func() {
		logger.Info("server starting", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
