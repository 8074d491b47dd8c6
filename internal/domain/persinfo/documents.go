package persinfo

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/storage"
)

const downloadURLTTL = 15 * time.Minute

var documentCategories = []string{
	"id-document", "medical-record", "insurance", "prescription", "lab-result", "imaging", "consent-form", "other",
}

type Document struct {
	DocumentID     uuid.UUID `json:"document_id" db:"document_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	FileName       string    `json:"file_name" db:"file_name"`
	FileType       string    `json:"file_type" db:"file_type"`
	FileURL        string    `json:"file_url" db:"file_url"`
	FileSize       int64     `json:"file_size" db:"file_size"`
	Description    *string   `json:"description" db:"description"`
	Category       string    `json:"category" db:"category"`
	IsConfidential bool      `json:"is_confidential" db:"is_confidential"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentCreate registers a file that was already uploaded to the
// personal-documents bucket; FileURL is its storage key.
type DocumentCreate struct {
	FileName       string  `json:"file_name" validate:"required,min=1"`
	FileType       string  `json:"file_type" validate:"required,min=1"`
	FileURL        string  `json:"file_url" validate:"required,min=1"`
	FileSize       int64   `json:"file_size" validate:"required,gt=0"`
	Description    *string `json:"description"`
	Category       *string `json:"category" validate:"omitempty,oneof=id-document medical-record insurance prescription lab-result imaging consent-form other"`
	IsConfidential *bool   `json:"is_confidential"`
}

type DocumentUpdate struct {
	FileName       *string `json:"file_name" validate:"omitempty,min=1"`
	Description    *string `json:"description"`
	Category       *string `json:"category" validate:"omitempty,oneof=id-document medical-record insurance prescription lab-result imaging consent-form other"`
	IsConfidential *bool   `json:"is_confidential"`
}

var DocumentTable = crud.Table{
	Name:          "patient__persinfo__documents",
	IDColumn:      "document_id",
	SearchColumns: []string{"file_name", "description"},
	Filters: []crud.Filter{
		{Param: "category", Column: "category", Values: documentCategories},
	},
	Sorts:      []string{"created_at", "file_name", "category", "file_size"},
	SoftDelete: true,
}

func documentItem(d *Document) crud.ListItem {
	sev := crud.SeverityNormal
	if d.IsConfidential {
		sev = crud.SeverityModerate
	}
	return crud.ListItem{
		ID:          d.DocumentID.String(),
		Title:       d.FileName,
		Letter:      crud.Initials(d.Category, "DO"),
		Severity:    sev,
		ThirdColumn: crud.Label(d.Category),
	}
}

// Documents serves the document records and their downloads.
type Documents struct {
	*crud.Resource[Document, DocumentCreate, DocumentUpdate]
	store storage.ObjectStore
}

func NewDocuments(repo crud.Repository[Document], store storage.ObjectStore) *Documents {
	return &Documents{
		Resource: &crud.Resource[Document, DocumentCreate, DocumentUpdate]{
			Table: DocumentTable,
			Repo:  repo,
			List: crud.ListFeature[Document]{
				EntityName: "Document",
				BasePath:   "/patient/persinfo/documents",
				Transform:  documentItem,
				Filters: []crud.FilterField{
					{Key: "category", Label: "Category", Type: "select", Options: crud.Options(documentCategories...)},
				},
			},
			Detail: crud.DetailFeature[Document]{
				FormFields: []crud.FormField{
					{Key: "file_name", Label: "File Name", Type: "text", Required: true},
					{Key: "category", Label: "Category", Type: "select", Options: crud.Options(documentCategories...)},
					{Key: "description", Label: "Description", Type: "textarea"},
					{Key: "is_confidential", Label: "Confidential", Type: "checkbox"},
				},
			},
		},
		store: store,
	}
}

func (d *Documents) RegisterRoutes(g *echo.Group) {
	d.Resource.RegisterRoutes(g)
	g.GET("/:id/download", d.Download)
}

// Download redirects to a short-lived link for the stored file.
func (d *Documents) Download(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	id, err := crud.ParseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	doc, err := d.Repo.Get(ctx, userID, id)
	if errors.Is(err, crud.ErrNotFound) {
		return httperr.NotFound("Not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	if !storage.OwnedBy(userID.String(), doc.FileURL) {
		return httperr.Forbidden()
	}

	url, err := d.store.PresignedGetURL(ctx, storage.BucketPersonalDocuments, doc.FileURL, downloadURLTTL)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return httperr.NotFound("Not found")
	}
	if err != nil {
		return httperr.Internal(err)
	}
	return c.Redirect(http.StatusFound, url)
}
