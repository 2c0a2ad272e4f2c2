package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"bijouterie-backoffice/config"
)

// Collection names. Migrations and $lookup stages refer to the same names.
const (
	Articles           = "articles"
	Catalogs           = "catalogs"
	Categories         = "categories"
	Colors             = "colors"
	Clients            = "clients"
	Suppliers          = "suppliers"
	Technicians        = "technicians"
	Roles              = "roles"
	Permissions        = "permissions"
	Users              = "users"
	Ensembles          = "ensembles"
	EnsembleCategories = "ensembleCategories"
	Repairs            = "repairs"
	Sales              = "sales"
	Purchases          = "purchases"
	Stock              = "stock"
	Counters           = "counters"
)

type Database struct {
	Client *mongo.Client
	DB     *mongo.Database
	cfg    config.MongoConfig
}

func Connect(ctx context.Context, cfg config.MongoConfig) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Database{Client: client, DB: client.Database(cfg.Database), cfg: cfg}, nil
}

func (d *Database) Collection(name string) *mongo.Collection {
	return d.DB.Collection(name)
}

func (d *Database) Disconnect(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// Transactor returns the unit-of-work runner configured for this database.
func (d *Database) Transactor() Transactor {
	if d.cfg.Transactions {
		return &SessionTransactor{client: d.Client}
	}
	return Direct{}
}
