package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"bijouterie-backoffice/database"
	"bijouterie-backoffice/logger"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
	"bijouterie-backoffice/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fixture struct {
	engine   *gin.Engine
	identity *models.Identity
	uploads  *Uploads

	articles           *repository.Memory[models.Article, *models.Article]
	purchases          *repository.Memory[models.Purchase, *models.Purchase]
	colors             *repository.Memory[models.Color, *models.Color]
	catalogs           *repository.Memory[models.Catalog, *models.Catalog]
	categories         *repository.Memory[models.Category, *models.Category]
	suppliers          *repository.Memory[models.Supplier, *models.Supplier]
	technicians        *repository.Memory[models.Technician, *models.Technician]
	repairs            *repository.Memory[models.Repair, *models.Repair]
	roles              *repository.Memory[models.Role, *models.Role]
	permissions        *repository.Memory[models.Permission, *models.Permission]
	users              *repository.Memory[models.User, *models.User]
	ensembles          *repository.Memory[models.Ensemble, *models.Ensemble]
	ensembleCategories *repository.Memory[models.EnsembleCategory, *models.EnsembleCategory]
	clients            *repository.MemoryClients
	sales              *repository.MemorySales
	stock              *repository.MemoryStock

	rolePermissions   *repository.MemoryLinker
	categoryEnsembles *repository.MemoryLinker

	color, catalog, supplier, role primitive.ObjectID
	// collection is an ensemble category known to categoryEnsembles.
	collection primitive.ObjectID
}

// newFixture mounts every handler on a bare engine. Requests run as an
// admin holding *:*; clear f.identity to call anonymously.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	loc := time.UTC

	f := &fixture{
		uploads:            NewUploads(t.TempDir()),
		articles:           repository.NewMemory[models.Article]("Article"),
		purchases:          repository.NewMemory[models.Purchase]("Purchase"),
		colors:             repository.NewMemory[models.Color]("Color"),
		catalogs:           repository.NewMemory[models.Catalog]("Catalog").Unique("name"),
		categories:         repository.NewMemory[models.Category]("Category"),
		suppliers:          repository.NewMemory[models.Supplier]("Supplier"),
		technicians:        repository.NewMemory[models.Technician]("Technician"),
		repairs:            repository.NewMemory[models.Repair]("Repair"),
		roles:              repository.NewMemory[models.Role]("Role"),
		permissions:        repository.NewMemory[models.Permission]("Permission"),
		users:              repository.NewMemory[models.User]("User").Unique("userName").Unique("email").Unique("phone"),
		ensembles:          repository.NewMemory[models.Ensemble]("Ensemble"),
		ensembleCategories: repository.NewMemory[models.EnsembleCategory]("Ensemble category"),
		clients:            repository.NewMemoryClients(),
		sales:              repository.NewMemorySales(loc),
		stock:              repository.NewMemoryStock(),
	}

	color := &models.Color{Name: "or", Hex: "#FFD700"}
	require.NoError(t, f.colors.Insert(ctx, color))
	catalog := &models.Catalog{Name: "Mariage", Description: "parures", Status: true, Articles: []primitive.ObjectID{}}
	require.NoError(t, f.catalogs.Insert(ctx, catalog))
	supplier := &models.Supplier{LastName: "atlas", Email: "atlas@example.dz", Status: true, Articles: []primitive.ObjectID{}}
	require.NoError(t, f.suppliers.Insert(ctx, supplier))
	role := &models.Role{RoleName: "admin", Permissions: []primitive.ObjectID{}}
	require.NoError(t, f.roles.Insert(ctx, role))
	f.color, f.catalog, f.supplier, f.role = color.ID, catalog.ID, supplier.ID, role.ID

	admin := &models.User{UserName: "admin", FirstName: "nadia", LastName: "amrani", Email: "admin@example.dz", Phone: "0550000001", Role: role.ID, Status: true}
	require.NoError(t, f.users.Insert(ctx, admin))
	f.identity = &models.Identity{User: admin.Public(), RoleName: "admin", Permissions: []string{models.PermissionSuperAdmin}}

	f.rolePermissions = repository.NewMemoryLinker("Role", role.ID)
	f.collection = primitive.NewObjectID()
	f.categoryEnsembles = repository.NewMemoryLinker("Ensemble category", f.collection)
	refs := repository.NewMemoryCounters()
	log := logger.Nop()

	auth := services.NewAuthService(f.users, f.roles, middleware.NewIssuer("secret", time.Hour), log)
	saleSvc := services.NewSaleService(f.sales, f.articles, f.clients, f.stock, refs, database.Direct{}, log)
	articleSvc := services.NewArticleService(services.ArticleDeps{
		Articles:         f.articles,
		Purchases:        f.purchases,
		Colors:           f.colors,
		Catalogs:         f.catalogs,
		Suppliers:        f.suppliers,
		Stock:            f.stock,
		Sales:            f.sales,
		Refs:             refs,
		SupplierArticles: storeLinker[models.Supplier, *models.Supplier]{f.suppliers, func(s *models.Supplier) *[]primitive.ObjectID { return &s.Articles }},
		CatalogArticles:  storeLinker[models.Catalog, *models.Catalog]{f.catalogs, func(c *models.Catalog) *[]primitive.ObjectID { return &c.Articles }},
		EnsembleArticles: storeLinker[models.Ensemble, *models.Ensemble]{f.ensembles, func(e *models.Ensemble) *[]primitive.ObjectID { return &e.Articles }},
		Tx:               database.Direct{},
		Log:              log,
	})

	authH := NewAuthHandler(auth, "development")
	users := NewUserHandler(f.users, auth)
	articles := NewArticleHandler(articleSvc, f.articles, f.uploads)
	sales := NewSaleHandler(saleSvc, f.sales, f.clients, f.sales, loc)
	stock := NewStockHandler(f.stock, f.stock, f.articles)
	purchases := NewPurchaseHandler(NewPurchases(f.purchases), articleSvc)
	suppliers := NewSupplierHandler(NewSuppliers(f.suppliers), services.NewSupplierService(f.suppliers, f.purchases))

	r := gin.New()
	r.POST("/auth/login", authH.Login)
	r.POST("/auth/logout", authH.Logout)

	g := r.Group("", func(c *gin.Context) {
		if f.identity != nil {
			middleware.SetIdentity(c, f.identity)
		}
		c.Next()
	})
	g.GET("/auth/me", authH.Me)
	g.POST("/auth/register", authH.Register)
	g.GET("/users", users.List)
	g.GET("/users/:id", users.Get)
	g.PUT("/users/:id", users.Update)
	g.PUT("/users/status/:id", users.ToggleStatus)
	g.DELETE("/users/:id", users.Delete)

	mountAll(g, "articles", articles)
	mountAll(g, "catalogs", NewCatalogs(f.catalogs, f.uploads))
	mountAll(g, "categories", NewCategories(f.categories))
	mountAll(g, "colors", NewColors(f.colors, f.articles))
	mountAll(g, "clients", NewClients(f.clients))
	mountAll(g, "suppliers", suppliers)
	mountAll(g, "technicians", NewTechnicians(f.technicians, f.repairs))
	mountAll(g, "roles", NewRoles(f.roles, f.permissions, f.users))
	mountAll(g, "permissions", NewPermissions(f.permissions, f.rolePermissions))
	mountAll(g, "ensembles", NewEnsembles(f.ensembles, f.articles, f.categoryEnsembles, f.uploads))
	mountAll(g, "ensembleCategories", NewEnsembleCategories(f.ensembleCategories, f.ensembles))
	mountAll(g, "repairs", NewRepairs(f.repairs, f.technicians, f.clients, f.colors))

	g.GET("/purchases", purchases.List)
	g.GET("/purchases/:id", purchases.Get)
	g.POST("/purchases", purchases.Restock)

	g.GET("/stock", stock.List)
	g.GET("/stock/:id", stock.Get)
	g.PUT("/stock/:id", stock.Set)

	g.GET("/sales", sales.List)
	g.GET("/sales/summary", sales.Summary)
	g.GET("/sales/:id", sales.Get)
	g.POST("/sales", sales.Create)
	g.POST("/sales/verifyQte", sales.VerifyQuantities)
	g.PUT("/sales/:id", sales.Update)
	g.PUT("/sales/status/:id", sales.SetStatus)
	g.DELETE("/sales/:id", sales.Delete)
	g.PUT("/sales/payments/:id", sales.AddPayment)
	g.PUT("/sales/payments/:id/:paymentId", sales.EditPayment)
	g.DELETE("/sales/payments/:id/:paymentId", sales.DeletePayment)

	f.engine = r
	return f
}

type crudHandler interface {
	List(*gin.Context)
	Get(*gin.Context)
	Create(*gin.Context)
	Update(*gin.Context)
	Delete(*gin.Context)
	ToggleStatus(*gin.Context)
	UploadImage(*gin.Context)
}

func mountAll(g *gin.RouterGroup, name string, h crudHandler) {
	rg := g.Group("/" + name)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PUT("/status/:id", h.ToggleStatus)
	rg.PUT("/:id/image", h.UploadImage)
}

// storeLinker keeps an id array of a memory store in step, so a parent read
// over HTTP shows what the services linked.
type storeLinker[T any, PT interface {
	*T
	models.Document
}] struct {
	store *repository.Memory[T, PT]
	field func(*T) *[]primitive.ObjectID
}

func (l storeLinker[T, PT]) edit(ctx context.Context, parent primitive.ObjectID, fn func([]primitive.ObjectID) []primitive.ObjectID) error {
	doc, err := l.store.FindByID(ctx, parent)
	if err != nil {
		return err
	}
	ids := l.field(doc)
	*ids = fn(*ids)
	return l.store.Replace(ctx, doc)
}

func (l storeLinker[T, PT]) Add(ctx context.Context, parent, child primitive.ObjectID) error {
	return l.edit(ctx, parent, func(ids []primitive.ObjectID) []primitive.ObjectID {
		for _, id := range ids {
			if id == child {
				return ids
			}
		}
		return append(ids, child)
	})
}

func (l storeLinker[T, PT]) Remove(ctx context.Context, parent, child primitive.ObjectID) error {
	return l.edit(ctx, parent, func(ids []primitive.ObjectID) []primitive.ObjectID {
		out := []primitive.ObjectID{}
		for _, id := range ids {
			if id != child {
				out = append(out, id)
			}
		}
		return out
	})
}

func (l storeLinker[T, PT]) RemoveEverywhere(ctx context.Context, child primitive.ObjectID) ([]primitive.ObjectID, error) {
	docs, err := l.store.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	var parents []primitive.ObjectID
	for i := range docs {
		if !slices.Contains(*l.field(&docs[i]), child) {
			continue
		}
		id := PT(&docs[i]).GetID()
		if err := l.Remove(ctx, id, child); err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	return parents, nil
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(imageField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// field decodes one key of a JSON object response.
func field[T any](t *testing.T, w *httptest.ResponseRecorder, key string) T {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	raw, ok := body[key]
	require.True(t, ok, "missing %q in %s", key, w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return field[string](t, w, "message")
}

// article stores an article priced at price with qty units on hand.
func (f *fixture) article(t *testing.T, name string, price, qty int64) primitive.ObjectID {
	t.Helper()
	a := &models.Article{
		Name:        name,
		Description: name,
		Weight:      2,
		TypeArticle: models.ArticleRing,
		Color:       f.color,
		Catalog:     f.catalog,
		Supplier:    f.supplier,
		SellPrice:   models.NewAmount(price),
		BuyPrice:    models.NewAmount(price / 2),
		BarCode:     name,
		Status:      true,
	}
	require.NoError(t, f.articles.Insert(context.Background(), a))
	f.stock.Set(a.ID, qty)
	return a.ID
}

func (f *fixture) client(t *testing.T, first, last string) primitive.ObjectID {
	t.Helper()
	c := &models.Client{
		FirstName:  first,
		LastName:   last,
		TypeClient: "particulier",
		Phone:      primitive.NewObjectID().Hex(),
		Email:      primitive.NewObjectID().Hex() + "@example.dz",
		Status:     true,
		Purchases:  []primitive.ObjectID{},
	}
	require.NoError(t, f.clients.Insert(context.Background(), c))
	return c.ID
}

// user stores an active account with a cheaply hashed password.
func (f *fixture) user(t *testing.T, userName, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		UserName:  userName,
		FirstName: userName,
		LastName:  "test",
		Email:     userName + "@example.dz",
		Phone:     primitive.NewObjectID().Hex(),
		Password:  string(hash),
		Role:      f.role,
		Status:    true,
	}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return u
}
