package handlers

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bijouterie-backoffice/apperr"
	"bijouterie-backoffice/models"
)

const imageField = "img"

// Uploads stores images on local disk under Root/<folder>/<uuid>_<name>.
// Image.Filename keeps the path relative to Root, which is also the path
// served under /uploads.
type Uploads struct {
	Root string
}

func NewUploads(root string) *Uploads {
	return &Uploads{Root: root}
}

// Save reads the multipart img field. Only content sniffed as an image is
// accepted, whatever the client claims.
func (u *Uploads) Save(c *gin.Context, folder string) (*models.Image, error) {
	file, err := c.FormFile(imageField)
	if err != nil {
		return nil, apperr.Validation("An image is required in the %s field", imageField)
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperr.Internal(err, "open upload")
	}
	mime, err := mimetype.DetectReader(src)
	src.Close()
	if err != nil {
		return nil, apperr.Internal(err, "detect upload type")
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, apperr.Validation("The uploaded file is not an image")
	}

	dir := filepath.Join(u.Root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Internal(err, "create upload dir")
	}
	name := uuid.NewString() + "_" + filepath.Base(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		return nil, apperr.Internal(err, "save upload")
	}

	return &models.Image{
		Filename:     path.Join(folder, name),
		OriginalName: file.Filename,
		FileType:     mime.String(),
	}, nil
}

// Remove deletes a stored image. A file already gone is not an error.
func (u *Uploads) Remove(img *models.Image) error {
	if img == nil || img.Filename == "" {
		return nil
	}
	rel := filepath.Clean(filepath.FromSlash(img.Filename))
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return apperr.Validation("Invalid image path")
	}
	err := os.Remove(filepath.Join(u.Root, rel))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Internal(err, "remove upload")
	}
	return nil
}
