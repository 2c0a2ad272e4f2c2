package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

// Resources of the back office that need no service of their own.
type (
	CatalogResource          = Resource[models.Catalog, *models.Catalog]
	CategoryResource         = Resource[models.Category, *models.Category]
	ColorResource            = Resource[models.Color, *models.Color]
	ClientResource           = Resource[models.Client, *models.Client]
	SupplierResource         = Resource[models.Supplier, *models.Supplier]
	TechnicianResource       = Resource[models.Technician, *models.Technician]
	RoleResource             = Resource[models.Role, *models.Role]
	PermissionResource       = Resource[models.Permission, *models.Permission]
	EnsembleResource         = Resource[models.Ensemble, *models.Ensemble]
	EnsembleCategoryResource = Resource[models.EnsembleCategory, *models.EnsembleCategory]
	RepairResource           = Resource[models.Repair, *models.Repair]
	PurchaseResource         = Resource[models.Purchase, *models.Purchase]
	ArticleResource          = Resource[models.Article, *models.Article]
)

func NewCatalogs(store repository.Store[models.Catalog], uploads *Uploads) *CatalogResource {
	return &CatalogResource{
		Store:    store,
		Entity:   "Catalog",
		Singular: "catalog",
		Plural:   "catalogs",
		Uploads:  uploads,
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.Contains("name", q.Get("search")))
			b.Try(size(q, "nombreArticles", "articles"))
			b.Try(repository.Bool(q, "status", "status"))
			return b.Build()
		},
		OnCreate: func(_ context.Context, _ *gin.Context, doc *models.Catalog) error {
			doc.Status = true
			doc.Articles = []primitive.ObjectID{}
			return nil
		},
		OnUpdate: func(_ context.Context, _ *gin.Context, prev, doc *models.Catalog) error {
			doc.Articles = prev.Articles
			return nil
		},
		OnDelete: func(_ context.Context, doc *models.Catalog) error {
			if len(doc.Articles) > 0 {
				return apperr.Conflict("Catalog still has %d articles", len(doc.Articles))
			}
			return nil
		},
	}
}

func NewCategories(store repository.Store[models.Category]) *CategoryResource {
	return &CategoryResource{
		Store:    store,
		Entity:   "Category",
		Singular: "category",
		Plural:   "categories",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			return repository.And(repository.Contains("name", q.Get("search"))), nil
		},
	}
}

func NewColors(store repository.Store[models.Color], articles repository.Store[models.Article]) *ColorResource {
	return &ColorResource{
		Store:    store,
		Entity:   "Color",
		Singular: "color",
		Plural:   "colors",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			return repository.And(repository.Contains("name", q.Get("search"))), nil
		},
		OnDelete: func(ctx context.Context, doc *models.Color) error {
			return notReferenced(ctx, articles, bson.M{"color": doc.ID}, "Color is used by articles")
		},
	}
}

func NewClients(store repository.Store[models.Client]) *ClientResource {
	return &ClientResource{
		Store:    store,
		Entity:   "Client",
		Singular: "client",
		Plural:   "clients",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.NameSearch(searchText(q), "firstName", "lastName", "phone"))
			b.Add(repository.Contains("phone", q.Get("phone")))
			b.Add(repository.Equal(q, "typeClient", "typeClient"))
			b.Try(repository.DateRange(q, "createdAt"))
			b.Try(repository.Bool(q, "status", "status"))
			b.Try(size(q, "sells", "purchases"))
			return b.Build()
		},
		OnCreate: func(_ context.Context, _ *gin.Context, doc *models.Client) error {
			doc.Status = true
			doc.Purchases = []primitive.ObjectID{}
			return nil
		},
		OnUpdate: func(_ context.Context, _ *gin.Context, prev, doc *models.Client) error {
			doc.Purchases = prev.Purchases
			return nil
		},
		OnDelete: func(_ context.Context, doc *models.Client) error {
			if len(doc.Purchases) > 0 {
				return apperr.Conflict("Client has sales and cannot be deleted")
			}
			return nil
		},
	}
}

func NewSuppliers(store repository.Store[models.Supplier]) *SupplierResource {
	return &SupplierResource{
		Store:    store,
		Entity:   "Supplier",
		Singular: "supplier",
		Plural:   "suppliers",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.NameSearch(searchText(q), "firstName", "lastName", "phone"))
			b.Add(repository.Contains("email", q.Get("email")))
			b.Try(repository.Bool(q, "status", "status"))
			return b.Build()
		},
		OnCreate: func(_ context.Context, _ *gin.Context, doc *models.Supplier) error {
			doc.Status = true
			doc.Articles = []primitive.ObjectID{}
			doc.TotalPayment = models.Amount{}
			return nil
		},
		OnUpdate: func(_ context.Context, _ *gin.Context, prev, doc *models.Supplier) error {
			doc.Articles, doc.TotalPayment = prev.Articles, prev.TotalPayment
			return nil
		},
		OnDelete: func(_ context.Context, doc *models.Supplier) error {
			if len(doc.Articles) > 0 {
				return apperr.Conflict("Supplier still has %d articles", len(doc.Articles))
			}
			return nil
		},
	}
}

func NewTechnicians(store repository.Store[models.Technician], repairs repository.Store[models.Repair]) *TechnicianResource {
	return &TechnicianResource{
		Store:    store,
		Entity:   "Technician",
		Singular: "technician",
		Plural:   "technicians",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.NameSearch(searchText(q), "firstName", "lastName", "phone"))
			b.Try(repository.Bool(q, "status", "status"))
			return b.Build()
		},
		OnCreate: func(_ context.Context, _ *gin.Context, doc *models.Technician) error {
			doc.Status = true
			return nil
		},
		OnDelete: func(ctx context.Context, doc *models.Technician) error {
			return notReferenced(ctx, repairs, bson.M{"technicien": doc.ID}, "Technician has repairs")
		},
	}
}

func NewRoles(store repository.Store[models.Role], permissions repository.Store[models.Permission], users repository.Store[models.User]) *RoleResource {
	check := func(ctx context.Context, doc *models.Role) error {
		if doc.Permissions == nil {
			doc.Permissions = []primitive.ObjectID{}
		}
		return allExist(ctx, permissions, doc.Permissions, "Permission")
	}
	return &RoleResource{
		Store:    store,
		Entity:   "Role",
		Singular: "role",
		Plural:   "roles",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			return repository.And(repository.Contains("roleName", q.Get("search"))), nil
		},
		OnCreate: func(ctx context.Context, _ *gin.Context, doc *models.Role) error {
			return check(ctx, doc)
		},
		OnUpdate: func(ctx context.Context, _ *gin.Context, _, doc *models.Role) error {
			return check(ctx, doc)
		},
		OnDelete: func(ctx context.Context, doc *models.Role) error {
			return notReferenced(ctx, users, bson.M{"role": doc.ID}, "Role is assigned to users")
		},
	}
}

// NewPermissions pulls a deleted permission out of every role granting it.
func NewPermissions(store repository.Store[models.Permission], rolePermissions repository.Linker) *PermissionResource {
	return &PermissionResource{
		Store:    store,
		Entity:   "Permission",
		Singular: "permission",
		Plural:   "permissions",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			return repository.And(repository.Contains("permissionName", q.Get("search"))), nil
		},
		AfterDelete: func(ctx context.Context, doc *models.Permission) error {
			_, err := rolePermissions.RemoveEverywhere(ctx, doc.ID)
			return err
		},
	}
}

// NewEnsembles records the authenticated user as the creator.
func NewEnsembles(store repository.Store[models.Ensemble], articles repository.Store[models.Article], categoryEnsembles repository.Linker, uploads *Uploads) *EnsembleResource {
	return &EnsembleResource{
		Store:    store,
		Entity:   "Ensemble",
		Singular: "ensemble",
		Plural:   "ensembles",
		Uploads:  uploads,
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.Contains("name", q.Get("search")))
			b.Try(repository.ObjectID(q, "creator", "creator"))
			b.Try(repository.Bool(q, "status", "status"))
			return b.Build()
		},
		OnCreate: func(ctx context.Context, c *gin.Context, doc *models.Ensemble) error {
			identity, ok := middleware.CurrentIdentity(c)
			if !ok {
				return apperr.Unauthorized("Unauthorized: missing token")
			}
			doc.Creator = identity.User.ID
			doc.Status = true
			return allExist(ctx, articles, doc.Articles, "Article")
		},
		OnUpdate: func(ctx context.Context, _ *gin.Context, prev, doc *models.Ensemble) error {
			doc.Creator = prev.Creator
			return allExist(ctx, articles, doc.Articles, "Article")
		},
		AfterDelete: func(ctx context.Context, doc *models.Ensemble) error {
			_, err := categoryEnsembles.RemoveEverywhere(ctx, doc.ID)
			return err
		},
	}
}

func NewEnsembleCategories(store repository.Store[models.EnsembleCategory], ensembles repository.Store[models.Ensemble]) *EnsembleCategoryResource {
	check := func(ctx context.Context, doc *models.EnsembleCategory) error {
		if doc.Ensembles == nil {
			doc.Ensembles = []primitive.ObjectID{}
		}
		return allExist(ctx, ensembles, doc.Ensembles, "Ensemble")
	}
	return &EnsembleCategoryResource{
		Store:    store,
		Entity:   "Ensemble category",
		Singular: "ensembleCategory",
		Plural:   "ensembleCategories",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Add(repository.Contains("name", q.Get("search")))
			b.Try(repository.Bool(q, "status", "status"))
			return b.Build()
		},
		OnCreate: func(ctx context.Context, _ *gin.Context, doc *models.EnsembleCategory) error {
			doc.Status = true
			return check(ctx, doc)
		},
		OnUpdate: func(ctx context.Context, _ *gin.Context, _, doc *models.EnsembleCategory) error {
			return check(ctx, doc)
		},
	}
}

// NewRepairs resolves a free text search against technician names.
func NewRepairs(store repository.Store[models.Repair], technicians repository.Store[models.Technician], clients repository.Store[models.Client], colors repository.Store[models.Color]) *RepairResource {
	check := func(ctx context.Context, doc *models.Repair) error {
		if _, err := technicians.FindByID(ctx, doc.Technician); err != nil {
			return err
		}
		if _, err := clients.FindByID(ctx, doc.Client); err != nil {
			return err
		}
		ids := make([]primitive.ObjectID, 0, len(doc.RepairedArticles))
		for _, a := range doc.RepairedArticles {
			ids = append(ids, a.Color)
		}
		return allExist(ctx, colors, ids, "Color")
	}
	return &RepairResource{
		Store:    store,
		Entity:   "Repair",
		Singular: "repair",
		Plural:   "repairs",
		Filter: func(ctx context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			if text := searchText(q); text != "" {
				matched, err := technicians.Find(ctx, repository.NameSearch(text, "firstName", "lastName", "phone"))
				if err != nil {
					return nil, err
				}
				ids := make([]primitive.ObjectID, len(matched))
				for i := range matched {
					ids[i] = matched[i].ID
				}
				b.Add(bson.M{"technicien": bson.M{"$in": ids}})
			}
			b.Try(repository.ObjectID(q, "technicien", "technicien"))
			b.Try(repository.ObjectID(q, "client", "client"))
			b.Try(repository.DateRange(q, "createdAt"))
			b.Add(repository.Equal(q, "status", "status"))
			b.Try(repository.Number(q, "cost", "price"))
			b.Try(size(q, "count", "repairedArticles"))
			return b.Build()
		},
		OnCreate: func(ctx context.Context, _ *gin.Context, doc *models.Repair) error {
			return check(ctx, doc)
		},
		OnUpdate: func(ctx context.Context, _ *gin.Context, _, doc *models.Repair) error {
			return check(ctx, doc)
		},
	}
}

// NewPurchases is read only; purchases are written by the article service.
func NewPurchases(store repository.Store[models.Purchase]) *PurchaseResource {
	return &PurchaseResource{
		Store:    store,
		Entity:   "Purchase",
		Singular: "purchase",
		Plural:   "purchases",
		Filter: func(_ context.Context, q repository.Query) (bson.M, error) {
			var b repository.Builder
			b.Try(repository.ObjectID(q, "supplier", "supplier"))
			b.Try(repository.ObjectID(q, "article", "article"))
			b.Try(repository.Number(q, "ref", "ref"))
			b.Add(repository.Equal(q, "typeArticle", "typeArticle"))
			b.Try(repository.DateRange(q, "createdAt"))
			return b.Build()
		},
	}
}

// searchText reads the free text parameter, which some screens send as
// fullName.
func searchText(q repository.Query) string {
	if s := q.Get("search"); s != "" {
		return s
	}
	return q.Get("fullName")
}

// size filters on the length of an array field.
func size(q repository.Query, param, field string) (bson.M, error) {
	v := q.Get(param)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, apperr.Validation("%s must be a positive integer", param)
	}
	return bson.M{field: bson.M{"$size": n}}, nil
}

// allExist fails with NotFound when one of ids has no document in store.
func allExist[T any](ctx context.Context, store repository.Store[T], ids []primitive.ObjectID, entity string) error {
	distinct := make(map[primitive.ObjectID]bool, len(ids))
	list := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !distinct[id] {
			distinct[id] = true
			list = append(list, id)
		}
	}
	if len(list) == 0 {
		return nil
	}
	n, err := store.Count(ctx, bson.M{"_id": bson.M{"$in": list}})
	if err != nil {
		return err
	}
	if n != int64(len(list)) {
		return apperr.NotFound("One or more %s references do not exist", entity)
	}
	return nil
}

func notReferenced[T any](ctx context.Context, store repository.Store[T], filter bson.M, message string) error {
	used, err := store.Exists(ctx, filter)
	if err != nil {
		return err
	}
	if used {
		return apperr.Conflict("%s", message)
	}
	return nil
}
