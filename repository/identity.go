package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

type IdentityStore interface {
	Identity(ctx context.Context, userID primitive.ObjectID) (*models.Identity, error)
}

type UserCollection struct {
	*Collection[models.User, *models.User]
}

func NewUserCollection(coll *mongo.Collection) *UserCollection {
	return &UserCollection{Collection: NewCollection[models.User](coll, "User")}
}

// Identity resolves a user with its role name and permission names in a
// single aggregation.
func (u *UserCollection) Identity(ctx context.Context, userID primitive.ObjectID) (*models.Identity, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "roles",
			"localField":   "role",
			"foreignField": "_id",
			"as":           "roleDoc",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$roleDoc", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "permissions",
			"localField":   "roleDoc.permission",
			"foreignField": "_id",
			"as":           "permissionDocs",
		}}},
	}

	cursor, err := u.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Internal(err, "load identity")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		models.User `bson:",inline"`
		RoleDoc     *models.Role        `bson:"roleDoc"`
		Permissions []models.Permission `bson:"permissionDocs"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Internal(err, "decode identity")
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("User with ID %s not found", userID.Hex())
	}

	row := rows[0]
	id := &models.Identity{User: row.User.Public()}
	if row.RoleDoc != nil {
		id.RoleName = row.RoleDoc.RoleName
	}
	for _, p := range row.Permissions {
		id.Permissions = append(id.Permissions, p.PermissionName)
	}
	return id, nil
}
