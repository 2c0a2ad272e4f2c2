package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bijouterie-backoffice/config"
	"bijouterie-backoffice/models"
)

const AdminRole = "admin"

// Seed makes sure the admin role exists with the super-admin permission,
// and creates the bootstrap administrator when its credentials are set.
// Existing documents are never overwritten.
func Seed(ctx context.Context, d *Database, cfg config.SeedConfig, log *zap.Logger) error {
	now := time.Now()
	upsert := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var perm models.Permission
	err := d.Collection(Permissions).FindOneAndUpdate(ctx,
		bson.M{"permissionName": models.PermissionSuperAdmin},
		bson.M{"$setOnInsert": bson.M{"createdAt": now, "updatedAt": now}},
		upsert,
	).Decode(&perm)
	if err != nil {
		return fmt.Errorf("seed permission: %w", err)
	}

	var role models.Role
	err = d.Collection(Roles).FindOneAndUpdate(ctx,
		bson.M{"roleName": AdminRole},
		bson.M{
			"$setOnInsert": bson.M{"createdAt": now},
			"$addToSet":    bson.M{"permission": perm.ID},
			"$set":         bson.M{"updatedAt": now},
		},
		upsert,
	).Decode(&role)
	if err != nil {
		return fmt.Errorf("seed role: %w", err)
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Info("admin seed skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	n, err := d.Collection(Users).CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{
		UserName:  cfg.AdminUserName,
		FirstName: "admin",
		LastName:  "admin",
		Email:     email,
		Phone:     "0000000000",
		Password:  string(hash),
		Role:      role.ID,
		Status:    true,
	}
	admin.ID = primitive.NewObjectID()
	admin.Touch(now)
	if _, err := d.Collection(Users).InsertOne(ctx, admin); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	log.Info("admin user created", zap.String("email", email), zap.String("userName", admin.UserName))
	return nil
}
