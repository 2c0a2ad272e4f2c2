package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"bijouterie-backoffice/config"
	"bijouterie-backoffice/database"
	"bijouterie-backoffice/handlers"
	"bijouterie-backoffice/logger"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
	"bijouterie-backoffice/router"
	"bijouterie-backoffice/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envFile := config.EnvFile()
	envErr := godotenv.Load(envFile)

	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer log.Sync()
	if envErr != nil {
		log.Warn("env file not loaded, using process environment", zap.String("file", envFile), zap.Error(envErr))
	}

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.Warn("disconnect mongo", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, log); err != nil {
		return err
	}
	if err := database.Seed(ctx, db, cfg.Seed, log); err != nil {
		return err
	}

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	deps, err := wire(ctx, cfg, db, log, loc)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// wire builds every store, service and handler over one database.
func wire(ctx context.Context, cfg *config.Config, db *database.Database, log *zap.Logger, loc *time.Location) (router.Deps, error) {
	coll := db.Collection

	articles := repository.NewCollection[models.Article](coll(database.Articles), "Article")
	catalogs := repository.NewCollection[models.Catalog](coll(database.Catalogs), "Catalog")
	categories := repository.NewCollection[models.Category](coll(database.Categories), "Category")
	colors := repository.NewCollection[models.Color](coll(database.Colors), "Color")
	suppliers := repository.NewCollection[models.Supplier](coll(database.Suppliers), "Supplier")
	technicians := repository.NewCollection[models.Technician](coll(database.Technicians), "Technician")
	roles := repository.NewCollection[models.Role](coll(database.Roles), "Role")
	permissions := repository.NewCollection[models.Permission](coll(database.Permissions), "Permission")
	ensembles := repository.NewCollection[models.Ensemble](coll(database.Ensembles), "Ensemble")
	ensembleCategories := repository.NewCollection[models.EnsembleCategory](coll(database.EnsembleCategories), "Ensemble category")
	repairs := repository.NewCollection[models.Repair](coll(database.Repairs), "Repair")
	purchases := repository.NewCollection[models.Purchase](coll(database.Purchases), "Purchase")
	clients := repository.NewClientCollection(coll(database.Clients))
	users := repository.NewUserCollection(coll(database.Users))
	stock := repository.NewStockCollection(coll(database.Stock))
	sales := repository.NewSaleCollection(coll(database.Sales), cfg.Server.Timezone)
	refs := repository.NewCounters(coll(database.Counters), map[string]*mongo.Collection{
		services.SalesSequence:     coll(database.Sales),
		services.PurchasesSequence: coll(database.Purchases),
	})
	if err := refs.Seed(ctx); err != nil {
		return router.Deps{}, err
	}
	tx := db.Transactor()

	issuer := middleware.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	authSvc := services.NewAuthService(users, roles, issuer, log)
	saleSvc := services.NewSaleService(sales, articles, clients, stock, refs, tx, log)
	articleSvc := services.NewArticleService(services.ArticleDeps{
		Articles:         articles,
		Purchases:        purchases,
		Colors:           colors,
		Catalogs:         catalogs,
		Suppliers:        suppliers,
		Stock:            stock,
		Sales:            sales,
		Refs:             refs,
		SupplierArticles: repository.NewArrayField(coll(database.Suppliers), "articles", "Supplier"),
		CatalogArticles:  repository.NewArrayField(coll(database.Catalogs), "articles", "Catalog"),
		EnsembleArticles: repository.NewArrayField(coll(database.Ensembles), "articles", "Ensemble"),
		Tx:               tx,
		Log:              log,
	})
	supplierSvc := services.NewSupplierService(suppliers, purchases)

	uploads := handlers.NewUploads(cfg.Server.UploadDir)
	return router.Deps{
		Server:     cfg.Server,
		Log:        log,
		Tokens:     issuer,
		Identities: users,

		Auth:               handlers.NewAuthHandler(authSvc, cfg.Server.AppEnv),
		Users:              handlers.NewUserHandler(users, authSvc),
		Articles:           handlers.NewArticleHandler(articleSvc, articles, uploads),
		Sales:              handlers.NewSaleHandler(saleSvc, sales, clients, sales, loc),
		Stock:              handlers.NewStockHandler(stock, stock, articles),
		Purchases:          handlers.NewPurchaseHandler(handlers.NewPurchases(purchases), articleSvc),
		Suppliers:          handlers.NewSupplierHandler(handlers.NewSuppliers(suppliers), supplierSvc),
		Catalogs:           handlers.NewCatalogs(catalogs, uploads),
		Categories:         handlers.NewCategories(categories),
		Colors:             handlers.NewColors(colors, articles),
		Clients:            handlers.NewClients(clients),
		Technicians:        handlers.NewTechnicians(technicians, repairs),
		Roles:              handlers.NewRoles(roles, permissions, users),
		Permissions:        handlers.NewPermissions(permissions, repository.NewArrayField(coll(database.Roles), "permission", "Role")),
		Ensembles:          handlers.NewEnsembles(ensembles, articles, repository.NewArrayField(coll(database.EnsembleCategories), "ensembles", "Ensemble category"), uploads),
		EnsembleCategories: handlers.NewEnsembleCategories(ensembleCategories, ensembles),
		Repairs:            handlers.NewRepairs(repairs, technicians, clients, colors),
	}, nil
}
