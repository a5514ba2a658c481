package main

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bookpress/backend/internal/auth"
	"github.com/bookpress/backend/internal/modules/bulk"
	"github.com/bookpress/backend/internal/modules/catalog"
	"github.com/bookpress/backend/internal/modules/notify"
	"github.com/bookpress/backend/internal/modules/order"
	"github.com/bookpress/backend/internal/modules/returns"
	"github.com/bookpress/backend/internal/modules/stock"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using process environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	log.Info("connected to database")

	var notifier notify.Notifier
	if apiKey := os.Getenv("SMS_API_KEY"); apiKey != "" {
		notifier = notify.NewSMSGateway(apiKey, os.Getenv("SMS_SENDER_ID"), os.Getenv("SMS_BASE_URL"))
	} else {
		log.Info("SMS_API_KEY not set, notifications go to the log")
		notifier = notify.NewLogNotifier(log)
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireActor)

		// ── Stock Ledger ────────────────────────────────────
		stockRepo := stock.NewPostgresRepository(db)
		stockService := stock.NewService(stockRepo)
		stock.NewHandler(stockService).RegisterRoutes(r)

		// ── Catalog ─────────────────────────────────────────
		bookRepo := catalog.NewBookPostgresRepository(db)
		bundleRepo := catalog.NewBundlePostgresRepository(db)
		catalogService := catalog.NewService(bookRepo, bundleRepo, stockService)
		catalog.NewHandler(catalogService).RegisterRoutes(r)

		// ── Orders ──────────────────────────────────────────
		orderRepo := order.NewPostgresRepository(db)
		orderService := order.NewService(orderRepo, catalogService, stockService, notifier, log)
		order.NewHandler(orderService).RegisterRoutes(r)

		// ── Bulk Import ─────────────────────────────────────
		bulkService := bulk.NewService(orderService, catalogService, log)
		bulk.NewHandler(bulkService).RegisterRoutes(r)

		// ── Returns & Replacements ──────────────────────────
		returnsRepo := returns.NewPostgresRepository(db)
		returnsService := returns.NewService(returnsRepo, orderRepo, catalogService, stockService, notifier, log)
		returns.NewHandler(returnsService).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("api server starting")
	log.Fatal(http.ListenAndServe(":"+port, router))
}
