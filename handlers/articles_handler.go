package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
	"bijouterie-backoffice/services"
)

// ArticleHandler goes through the article service for everything that
// touches stock, purchases or parent links. Status toggles and images use
// the plain resource.
type ArticleHandler struct {
	svc      *services.ArticleService
	articles repository.Store[models.Article]
	*ArticleResource
}

func NewArticleHandler(svc *services.ArticleService, articles repository.Store[models.Article], uploads *Uploads) *ArticleHandler {
	return &ArticleHandler{
		svc:      svc,
		articles: articles,
		ArticleResource: &ArticleResource{
			Store:    articles,
			Entity:   "Article",
			Singular: "article",
			Plural:   "articles",
			Uploads:  uploads,
		},
	}
}

func (h *ArticleHandler) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	filter, err := h.filter(ctx, query(c))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			c.JSON(http.StatusOK, gin.H{"articles": []models.Article{}})
			return
		}
		respondError(c, err)
		return
	}
	articles, err := h.svc.List(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

// filter reads the article list parameters. catalog is a catalog name; an
// unknown one surfaces as NotFound and List answers with no articles.
func (h *ArticleHandler) filter(ctx context.Context, q repository.Query) (bson.M, error) {
	var b repository.Builder
	b.Add(repository.Contains("name", q.Get("search")))
	b.Try(repository.ObjectID(q, "color", "color"))
	b.Try(repository.ObjectID(q, "supplier", "supplier"))
	b.Add(repository.Equal(q, "typeArticle", "typeArticle"))
	b.Add(repository.Equal(q, "barCode", "barCode"))
	b.Try(repository.Number(q, "weight", "weight"))
	b.Try(repository.Number(q, "sellPrice", "sellPrice"))
	b.Try(repository.Number(q, "buyPrice", "buyPrice"))
	b.Try(repository.Bool(q, "status", "status"))
	filter, err := b.Build()
	if err != nil {
		return nil, err
	}

	if name := q.Get("catalog"); name != "" {
		id, err := h.svc.ResolveCatalogName(ctx, name)
		if err != nil {
			return nil, err
		}
		filter = repository.And(filter, bson.M{"catalog": id})
	}
	return filter, nil
}

func (h *ArticleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	article, err := h.svc.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}

// Create stores the article bought in countArticle units, with its purchase
// and stock row.
func (h *ArticleHandler) Create(c *gin.Context) {
	var article models.Article
	if !bindJSON(c, &article) {
		return
	}
	article.Base, article.Img = models.Base{}, nil
	if identity, ok := middleware.CurrentIdentity(c); ok {
		article.CreatedBy = identity.User.ID
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	created, purchase, err := h.svc.Create(ctx, &article, article.CountArticle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Article created successfully",
		"article":  created,
		"purchase": purchase,
	})
}

// Update edits the catalog fields of an article. Quantities change through
// purchases and the stock endpoint only.
func (h *ArticleHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	prev, err := h.articles.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	next := *prev
	next.Img = nil
	if !bindJSON(c, &next) {
		return
	}
	next.ID, next.CreatedAt = prev.ID, prev.CreatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = prev.UpdatedAt
	}
	next.Img, next.CreatedBy = prev.Img, prev.CreatedBy

	updated, err := h.svc.Update(ctx, prev, &next)
	if err != nil {
		respondError(c, err)
		return
	}
	if fresh, err := h.svc.Get(ctx, id); err == nil {
		updated = fresh
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article updated successfully", "article": updated})
}

func (h *ArticleHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	article, err := h.svc.Delete(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Uploads.Remove(article.Img); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article deleted successfully"})
}
