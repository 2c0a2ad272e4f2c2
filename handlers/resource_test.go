package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/models"
)

func TestCatalogCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/catalogs", map[string]any{
		"name":        "Fiançailles",
		"description": "bagues",
		"status":      false,
		"articles":    []primitive.ObjectID{primitive.NewObjectID()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Catalog created successfully", message(t, w))

	got := field[models.Catalog](t, w, "catalog")
	assert.False(t, got.ID.IsZero())
	assert.True(t, got.Status)
	assert.Empty(t, got.Articles)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCatalogCreateValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/catalogs", map[string]any{"name": "Sans description"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing fields: description", message(t, w))

	w = f.do(t, http.MethodPost, "/catalogs", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", message(t, w))

	w = f.do(t, http.MethodPost, "/catalogs", map[string]any{"name": "Mariage", "description": "doublon"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCatalogUpdateKeepsArticles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ring := f.article(t, "bague", 3000, 1)
	stored, err := f.catalogs.FindByID(ctx, f.catalog)
	require.NoError(t, err)
	stored.Articles = []primitive.ObjectID{ring}
	require.NoError(t, f.catalogs.Replace(ctx, stored))

	w := f.do(t, http.MethodPut, "/catalogs/"+f.catalog.Hex(), map[string]any{
		"name":     "Mariage 2026",
		"articles": []primitive.ObjectID{},
		"id":       primitive.NewObjectID(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Catalog updated successfully", message(t, w))

	got, err := f.catalogs.FindByID(ctx, f.catalog)
	require.NoError(t, err)
	assert.Equal(t, "Mariage 2026", got.Name)
	assert.Equal(t, "parures", got.Description, "omitted fields keep their value")
	assert.Equal(t, []primitive.ObjectID{ring}, got.Articles)
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/catalogs/"+f.catalog.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	seen := field[models.Catalog](t, w, "catalog").UpdatedAt

	w = f.do(t, http.MethodPut, "/catalogs/"+f.catalog.Hex(), map[string]any{"name": "Mariage", "description": "v2", "updatedAt": seen})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPut, "/catalogs/"+f.catalog.Hex(), map[string]any{"name": "Mariage", "description": "v3", "updatedAt": seen})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPut, "/catalogs/"+f.catalog.Hex(), map[string]any{"name": "Mariage", "description": "v4", "updatedAt": time.Now().Add(-time.Hour)})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stored, err := f.catalogs.FindByID(ctx, f.catalog)
	require.NoError(t, err)
	stored.Articles = []primitive.ObjectID{primitive.NewObjectID()}
	require.NoError(t, f.catalogs.Replace(ctx, stored))

	w := f.do(t, http.MethodDelete, "/catalogs/"+f.catalog.Hex(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Catalog still has 1 articles", message(t, w))

	empty := &models.Catalog{Name: "Vide", Description: "rien", Articles: []primitive.ObjectID{}}
	require.NoError(t, f.catalogs.Insert(ctx, empty))
	w = f.do(t, http.MethodDelete, "/catalogs/"+empty.ID.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Catalog deleted successfully", message(t, w))

	w = f.do(t, http.MethodGet, "/catalogs/"+empty.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Catalog with ID "+empty.ID.Hex()+" not found", message(t, w))
}

func TestInvalidID(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/catalogs/nope", "/clients/123", "/sales/xyz", "/stock/0"} {
		w := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "Invalid id", message(t, w), path)
	}
}

func TestToggleStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/catalogs/status/"+f.catalog.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Catalog status updated successfully", message(t, w))
	assert.False(t, field[models.Catalog](t, w, "catalog").Status)

	w = f.do(t, http.MethodPut, "/catalogs/status/"+f.catalog.Hex(), nil)
	assert.True(t, field[models.Catalog](t, w, "catalog").Status)
}

func TestCatalogListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.catalogs.Insert(ctx, &models.Catalog{
		Name: "Bijoux de tête", Description: "diadèmes", Articles: []primitive.ObjectID{primitive.NewObjectID()},
	}))

	w := f.do(t, http.MethodGet, "/catalogs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, field[[]models.Catalog](t, w, "catalogs"), 2)

	w = f.do(t, http.MethodGet, "/catalogs?search=mari", nil)
	got := field[[]models.Catalog](t, w, "catalogs")
	require.Len(t, got, 1)
	assert.Equal(t, f.catalog, got[0].ID)

	w = f.do(t, http.MethodGet, "/catalogs?nombreArticles=1", nil)
	got = field[[]models.Catalog](t, w, "catalogs")
	require.Len(t, got, 1)
	assert.Equal(t, "Bijoux de tête", got[0].Name)

	w = f.do(t, http.MethodGet, "/catalogs?search=introuvable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"catalogs":[]}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/catalogs?nombreArticles=beaucoup", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestColorDeleteInUse(t *testing.T) {
	f := newFixture(t)
	f.article(t, "bague", 1000, 1)

	w := f.do(t, http.MethodDelete, "/colors/"+f.color.Hex(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Color is used by articles", message(t, w))
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/clients", map[string]any{
		"firstName":  "amel",
		"lastName":   "bensaid",
		"typeClient": "particulier",
		"phone":      "0661000000",
		"email":      " Amel@Example.DZ ",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := field[models.Client](t, w, "client")
	assert.Equal(t, "amel@example.dz", created.Email)
	assert.True(t, created.Status)
	f.client(t, "karim", "ziani")

	w = f.do(t, http.MethodGet, "/clients?search=bens", nil)
	got := field[[]models.Client](t, w, "clients")
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	w = f.do(t, http.MethodGet, "/clients?typeClient=particulier&sells=0", nil)
	assert.Len(t, field[[]models.Client](t, w, "clients"), 2)

	require.NoError(t, f.clients.AddPurchase(ctx, created.ID, primitive.NewObjectID()))
	w = f.do(t, http.MethodPut, "/clients/"+created.ID.Hex(), map[string]any{"address": "Oran", "purchases": []primitive.ObjectID{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, field[models.Client](t, w, "client").Purchases, 1)

	w = f.do(t, http.MethodDelete, "/clients/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Client has sales and cannot be deleted", message(t, w))
}

func TestPartiesRejectMalformedEmail(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/clients", map[string]any{
		"firstName":  "amel",
		"lastName":   "bensaid",
		"typeClient": "particulier",
		"phone":      "0661000000",
		"email":      "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing fields: email", message(t, w))

	w = f.do(t, http.MethodPost, "/suppliers", map[string]any{"lastName": "atlas or", "email": "@@"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing fields: email", message(t, w))

	w = f.do(t, http.MethodPost, "/technicians", map[string]any{"firstName": "karim"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing fields: lastName, phone", message(t, w))

	n, err := f.clients.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoleChecksPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	perm := &models.Permission{PermissionName: "sales:create"}
	require.NoError(t, f.permissions.Insert(ctx, perm))

	w := f.do(t, http.MethodPost, "/roles", map[string]any{
		"roleName":   "vendeur",
		"permission": []primitive.ObjectID{perm.ID, primitive.NewObjectID()},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "One or more Permission references do not exist", message(t, w))

	w = f.do(t, http.MethodPost, "/roles", map[string]any{
		"roleName":   "vendeur",
		"permission": []primitive.ObjectID{perm.ID, perm.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodDelete, "/roles/"+f.role.Hex(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Role is assigned to users", message(t, w))
}

func TestPermissionDeletePullsFromRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/permissions", map[string]any{"permissionName": "stock:update"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	perm := field[models.Permission](t, w, "permission")
	require.NoError(t, f.rolePermissions.Add(ctx, f.role, perm.ID))

	w = f.do(t, http.MethodDelete, "/permissions/"+perm.ID.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.rolePermissions.Children(f.role))

	w = f.do(t, http.MethodPost, "/permissions", map[string]any{"permissionName": "nocolon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnsembleCreatorIsCaller(t *testing.T) {
	f := newFixture(t)
	ring := f.article(t, "bague", 1000, 1)

	w := f.do(t, http.MethodPost, "/ensembles", map[string]any{
		"name":        "Parure",
		"description": "bague et collier",
		"articles":    []primitive.ObjectID{ring},
		"creator":     primitive.NewObjectID(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ens := field[models.Ensemble](t, w, "ensemble")
	assert.Equal(t, f.identity.User.ID, ens.Creator)
	assert.True(t, ens.Status)

	w = f.do(t, http.MethodPost, "/ensembles", map[string]any{
		"name":        "Fantôme",
		"description": "article absent",
		"articles":    []primitive.ObjectID{primitive.NewObjectID()},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/ensembleCategories", map[string]any{
		"name":        "Hiver",
		"description": "collection",
		"ensembles":   []primitive.ObjectID{ens.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []primitive.ObjectID{ens.ID}, field[models.EnsembleCategory](t, w, "ensembleCategory").Ensembles)
}

func TestEnsembleDeletePullsFromCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ring := f.article(t, "bague", 1000, 1)
	ens := &models.Ensemble{Name: "Parure", Description: "d", Articles: []primitive.ObjectID{ring}}
	require.NoError(t, f.ensembles.Insert(ctx, ens))

	require.NoError(t, f.categoryEnsembles.Add(ctx, f.collection, ens.ID))

	w := f.do(t, http.MethodDelete, "/ensembles/"+ens.ID.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.categoryEnsembles.Children(f.collection))
}

func TestRepairs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	karim := &models.Technician{FirstName: "karim", LastName: "benali", Phone: "0770000000", Status: true}
	require.NoError(t, f.technicians.Insert(ctx, karim))
	sofiane := &models.Technician{FirstName: "sofiane", LastName: "meziane", Phone: "0770000001", Status: true}
	require.NoError(t, f.technicians.Insert(ctx, sofiane))
	client := f.client(t, "amel", "bensaid")

	repair := func(tech primitive.ObjectID) map[string]any {
		return map[string]any{
			"technicien": tech,
			"client":     client,
			"repairedArticles": []map[string]any{
				{"color": f.color, "typeArticle": models.ArticleRing, "weight": 3.5, "cost": 1500, "barCode": "R1"},
				{"color": f.color, "typeArticle": models.ArticleBracelet, "weight": 8, "cost": 2500, "barCode": "R2"},
			},
		}
	}

	w := f.do(t, http.MethodPost, "/repairs", repair(karim.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := field[models.Repair](t, w, "repair")
	assert.Equal(t, models.RepairPending, created.Status)
	assert.Equal(t, "4000", created.Price.String())

	three := repair(sofiane.ID)
	three["repairedArticles"] = append(three["repairedArticles"].([]map[string]any),
		map[string]any{"color": f.color, "typeArticle": models.ArticleEarrings, "weight": 1, "cost": 500, "barCode": "R3"})
	w = f.do(t, http.MethodPost, "/repairs", three)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "4500", field[models.Repair](t, w, "repair").Price.String())

	w = f.do(t, http.MethodPost, "/repairs", repair(primitive.NewObjectID()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/repairs?search=karim", nil)
	got := field[[]models.Repair](t, w, "repairs")
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	w = f.do(t, http.MethodGet, "/repairs?count=2&cost=4000", nil)
	got = field[[]models.Repair](t, w, "repairs")
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	w = f.do(t, http.MethodGet, "/repairs?count=3", nil)
	assert.Len(t, field[[]models.Repair](t, w, "repairs"), 1)

	w = f.do(t, http.MethodPost, "/repairs", map[string]any{"technicien": karim.ID, "client": client})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or missing fields: repairedArticles", message(t, w))

	w = f.do(t, http.MethodPut, "/repairs/"+created.ID.Hex(), map[string]any{"status": models.RepairInProgress})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RepairInProgress, field[models.Repair](t, w, "repair").Status)

	w = f.do(t, http.MethodPut, "/repairs/"+created.ID.Hex(), map[string]any{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/technicians/"+karim.ID.Hex(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Technician has repairs", message(t, w))
}
