package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"bijouterie-backoffice/models"
	"bijouterie-backoffice/repository"
)

// Resource is the CRUD surface shared by the plain entities. Hooks carry
// the few rules that differ between them; a nil hook is skipped.
type Resource[T any, PT interface {
	*T
	models.Document
}] struct {
	Store repository.Store[T]

	// Entity names the resource in messages ("Catalog created successfully").
	// Singular and Plural are the JSON keys of single and list responses.
	Entity   string
	Singular string
	Plural   string

	Filter func(ctx context.Context, q repository.Query) (bson.M, error)

	// OnCreate runs after validation, before the insert.
	OnCreate func(ctx context.Context, c *gin.Context, doc PT) error
	// OnUpdate sees the stored copy and the edited one, before the write.
	OnUpdate func(ctx context.Context, c *gin.Context, prev, doc PT) error
	// OnDelete may veto a delete; AfterDelete cleans up references to it.
	OnDelete    func(ctx context.Context, doc PT) error
	AfterDelete func(ctx context.Context, doc PT) error

	Uploads *Uploads
}

type validatable interface {
	Validate() error
}

func validate(doc any) error {
	if v, ok := doc.(validatable); ok {
		return v.Validate()
	}
	return nil
}

func (r *Resource[T, PT]) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	filter := bson.M{}
	if r.Filter != nil {
		var err error
		if filter, err = r.Filter(ctx, query(c)); err != nil {
			respondError(c, err)
			return
		}
	}
	docs, err := r.Store.Find(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{r.Plural: docs})
}

func (r *Resource[T, PT]) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := r.Store.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{r.Singular: doc})
}

func (r *Resource[T, PT]) Create(c *gin.Context) {
	doc := PT(new(T))
	if !bindJSON(c, doc) {
		return
	}
	*doc.Meta() = models.Base{}
	if holder, ok := any(doc).(models.ImageHolder); ok {
		holder.SetImage(nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := validate(doc); err != nil {
		respondError(c, err)
		return
	}
	if r.OnCreate != nil {
		if err := r.OnCreate(ctx, c, doc); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := r.Store.Insert(ctx, (*T)(doc)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  r.Entity + " created successfully",
		r.Singular: doc,
	})
}

// Update decodes the body over the stored document, so omitted fields keep
// their value. The id, creation date and image can not be changed here. A
// body carrying updatedAt is written only if nobody saved in between.
func (r *Resource[T, PT]) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stored, err := r.Store.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	edited, err := r.Store.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	prev, doc := PT(stored), PT(edited)
	if !bindJSON(c, doc) {
		return
	}

	meta := doc.Meta()
	meta.ID, meta.CreatedAt = prev.Meta().ID, prev.Meta().CreatedAt
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = prev.Meta().UpdatedAt
	}
	if holder, ok := any(doc).(models.ImageHolder); ok {
		holder.SetImage(any(prev).(models.ImageHolder).GetImage())
	}

	if err := validate(doc); err != nil {
		respondError(c, err)
		return
	}
	if r.OnUpdate != nil {
		if err := r.OnUpdate(ctx, c, prev, doc); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := r.Store.Replace(ctx, (*T)(doc)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  r.Entity + " updated successfully",
		r.Singular: doc,
	})
}

func (r *Resource[T, PT]) ToggleStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := r.Store.ToggleStatus(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  r.Entity + " status updated successfully",
		r.Singular: doc,
	})
}

func (r *Resource[T, PT]) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stored, err := r.Store.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	doc := PT(stored)
	if r.OnDelete != nil {
		if err := r.OnDelete(ctx, doc); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := r.Store.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if r.AfterDelete != nil {
		if err := r.AfterDelete(ctx, doc); err != nil {
			respondError(c, err)
			return
		}
	}
	if holder, ok := any(doc).(models.ImageHolder); ok && r.Uploads != nil {
		if err := r.Uploads.Remove(holder.GetImage()); err != nil {
			_ = c.Error(err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": r.Entity + " deleted successfully"})
}

// UploadImage stores the multipart img field and swaps it onto the document,
// removing the file it replaces.
func (r *Resource[T, PT]) UploadImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stored, err := r.Store.FindByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	holder, ok := any(PT(stored)).(models.ImageHolder)
	if !ok || r.Uploads == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": r.Entity + " has no image"})
		return
	}

	img, err := r.Uploads.Save(c, r.Plural)
	if err != nil {
		respondError(c, err)
		return
	}
	old := holder.GetImage()
	holder.SetImage(img)
	if err := r.Store.Replace(ctx, stored); err != nil {
		_ = r.Uploads.Remove(img)
		respondError(c, err)
		return
	}
	if err := r.Uploads.Remove(old); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  r.Entity + " image updated successfully",
		r.Singular: stored,
	})
}
