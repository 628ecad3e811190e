package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/internal/billing"
	"registrar/internal/contact"
	"registrar/internal/epp"
	"registrar/internal/identity"
	"registrar/internal/notify"
	"registrar/internal/order"
	orderMetrics "registrar/internal/order/metrics"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/middleware"
	"registrar/internal/platform/migrations"
	platformRedis "registrar/internal/platform/redis"
	"registrar/internal/registrar"
	registrarMetrics "registrar/internal/registrar/metrics"
	"registrar/internal/tasks"
	"registrar/internal/zone"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	if err := migrations.Apply(context.Background(), db); err != nil {
		log.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	cache, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	zones, err := loadZones(cfg)
	if err != nil {
		log.Error("load zones", "error", err)
		os.Exit(1)
	}

	dnsSetup, err := registrar.NewDNSSetup(cfg.DNSSetupURL, cfg.DNSSetupKey)
	if err != nil {
		log.Error("configure dns setup", "error", err)
		os.Exit(1)
	}

	registry := epp.NewRPCClient(cfg.RegistryAddr, cfg.RegistryTimeout)
	billingClient := billing.NewHTTPClient(cfg.BillingAddr)
	validator := identity.NewValidator(cfg.JWTSigningKey)

	orderStore := order.NewPostgresStore(db)
	domainStore := registrar.NewPostgresStore(db)
	contactStore := contact.NewPostgresStore(db)
	outboxStore := notify.NewPostgresStore(db)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay, err := notify.NewRelay(rootCtx, cfg.KafkaBrokers, cfg.EventsTopic, outboxStore, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	if relay != nil {
		go relay.Run(rootCtx)
		defer relay.Close()
	}

	ordMetrics := orderMetrics.New()
	regMetrics := registrarMetrics.New()

	processor := order.NewProcessor(order.ProcessorConfig{
		Store:     orderStore,
		Domains:   domainStore,
		Contacts:  contactStore,
		Registry:  registry,
		Billing:   billingClient,
		Zones:     zones,
		DB:        db,
		Logger:    log,
		Metrics:   ordMetrics,
		ReturnURL: cfg.PublicURL + "/orders/%s/confirm",
	})

	queue := tasks.NewQueue(processor, cache, log, cfg.TaskWorkers, 0)
	queue.Start(rootCtx)

	orderService := order.NewService(order.ServiceConfig{
		Store:               orderStore,
		Domains:             domainStore,
		Zones:               zones,
		Tasks:               queue,
		Logger:              log,
		Metrics:             ordMetrics,
		RegistrationEnabled: cfg.RegistrationEnabled,
		DomainDetailPath:    cfg.PublicURL + "/domains",
	})

	registrarService := registrar.NewService(registrar.ServiceConfig{
		Store:    domainStore,
		Contacts: contactStore,
		Registry: registry,
		Zones:    zones,
		Orders:   orderStore,
		Events:   notify.NewPublisher(outboxStore),
		Cache:    cache,
		DNSSetup: dnsSetup,
		Logger:   log,
		Metrics:  regMetrics,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	order.NewHandler(orderService, processor, validator, log).Register(router)
	registrar.NewHandler(registrarService, validator, log).Register(router)
	billing.NewWebhookHandler(processor, cfg.BillingWebhookSecret, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	queue.Wait()
}

func loadZones(cfg config.Config) (*zone.Registry, error) {
	if cfg.ZonesFile == "" {
		return zone.NewRegistry(zone.DevZones()), nil
	}
	zones, err := zone.LoadFile(cfg.ZonesFile)
	if err != nil {
		return nil, err
	}
	return zone.NewRegistry(zones), nil
}
