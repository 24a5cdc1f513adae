package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-retail-core/internal/auth"
	"go-retail-core/internal/backup"
	"go-retail-core/internal/catalog"
	"go-retail-core/internal/config"
	"go-retail-core/internal/database"
	"go-retail-core/internal/handlers"
	"go-retail-core/internal/invoice"
	"go-retail-core/internal/ledger"
	"go-retail-core/internal/middleware"
	"go-retail-core/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration failed")
	}
	log := config.NewLogger(cfg.LogLevel)

	if err := database.Connect(cfg.DBPath); err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	db := database.DB
	log.WithField("path", cfg.DBPath).Info("database ready")

	// Core wiring
	ledgerStore := ledger.NewStore(db)
	settingsStore := settings.NewStore(db)
	catalogSvc := catalog.NewService(db, ledgerStore)
	engine := invoice.NewEngine(db, ledgerStore, catalogSvc, settingsStore, log)
	backups := backup.NewManager(db, ledgerStore, log)
	gate := auth.NewGate(db, cfg.JWTSecret, cfg.TokenTTL, log)

	if err := gate.EnsureDefaultAdmin(); err != nil {
		log.WithError(err).Fatal("seed default admin failed")
	}
	if err := catalogSvc.EnsureDefaultSalesPersons(); err != nil {
		log.WithError(err).Fatal("seed sales persons failed")
	}

	if cfg.AutoBackup {
		if _, err := backups.AutoBackup(); err != nil {
			log.WithError(err).Error("startup auto backup failed")
		}
	}

	h := &handlers.Handler{
		DB:       db,
		Catalog:  catalogSvc,
		Engine:   engine,
		Ledger:   ledgerStore,
		Backups:  backups,
		Gate:     gate,
		Settings: settingsStore,
		Log:      log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)

	// Only opens if we explicitly allow it in the environment.
	if cfg.AllowRegistration {
		r.POST("/register", h.CreateUser)
		log.Warn("registration route is OPEN; disable this in production")
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(gate))
	{
		api.GET("/system/status", h.GetSystemStatus)
		api.GET("/settings", h.GetSettings)

		billing := api.Group("/")
		billing.Use(middleware.Require(gate, auth.OpCreateInvoice))
		{
			billing.POST("/bills", h.CreateBill)
			billing.POST("/bills/:id/reverse", h.ReverseBill)
		}
		api.GET("/bills", h.GetBills)
		api.GET("/bills/:id", h.GetBill)
		api.GET("/bills/next-number", h.GetNextInvoiceNumber)

		catalogGroup := api.Group("/")
		catalogGroup.Use(middleware.Require(gate, auth.OpManageCatalog))
		{
			catalogGroup.POST("/products", h.AddProduct)
			catalogGroup.PUT("/products/:id", h.UpdateProduct)
			catalogGroup.DELETE("/products/:id", h.DeleteProduct)
			catalogGroup.POST("/products/:id/stock", h.AdjustStock)
			catalogGroup.POST("/customers", h.AddCustomer)
			catalogGroup.PUT("/customers/:id", h.UpdateCustomer)
			catalogGroup.POST("/customers/merge", h.MergeCustomers)
			catalogGroup.POST("/sales-persons", h.AddSalesPerson)
			catalogGroup.PUT("/sales-persons/:id", h.UpdateSalesPerson)
		}
		api.GET("/products", h.GetProducts)
		api.GET("/products/low-stock", h.GetLowStock)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/history", h.GetStockHistory)
		api.GET("/products/:id/recompute", h.RecomputeStock)
		api.GET("/customers", h.GetCustomers)
		api.GET("/sales-persons", h.GetSalesPersons)

		reports := api.Group("/reports")
		reports.Use(middleware.Require(gate, auth.OpViewReports))
		{
			reports.GET("/sales", h.GetSalesReport)
			reports.GET("/valuation", h.GetStockValuation)
		}

		backupsGroup := api.Group("/backups")
		backupsGroup.Use(middleware.Require(gate, auth.OpCreateSnapshot))
		{
			backupsGroup.GET("", h.GetBackups)
			backupsGroup.POST("", h.CreateBackup)
		}

		admin := api.Group("/")
		{
			admin.POST("/backups/:id/restore", middleware.Require(gate, auth.OpRestoreSnapshot), h.RestoreBackup)
			admin.PUT("/settings", middleware.Require(gate, auth.OpManageSettings), h.UpsertSetting)

			users := admin.Group("/users")
			users.Use(middleware.Require(gate, auth.OpManageUsers))
			{
				users.GET("", h.ListUsers)
				users.POST("", h.CreateUser)
				users.PUT("/:username/password", h.SetPassword)
			}
		}
	}

	log.WithField("addr", cfg.ListenAddr).Info("server starting")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("server failed to start")
	}
}
