package persinfo

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scrypto/portal/internal/platform/crud"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/storage"
)

const maxProfilePictureSize = 5 << 20

var pictureTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type Profile struct {
	ProfileID             uuid.UUID  `json:"profile_id" db:"profile_id"`
	UserID                uuid.UUID  `json:"user_id" db:"user_id"`
	FirstName             string     `json:"first_name" db:"first_name"`
	LastName              string     `json:"last_name" db:"last_name"`
	Title                 *string    `json:"title" db:"title"`
	MiddleName            *string    `json:"middle_name" db:"middle_name"`
	NickName              *string    `json:"nick_name" db:"nick_name"`
	IDNumber              *string    `json:"id_number" db:"id_number"`
	PassportNumber        *string    `json:"passport_number" db:"passport_number"`
	Citizenship           *string    `json:"citizenship" db:"citizenship"`
	DateOfBirth           *string    `json:"date_of_birth" db:"date_of_birth"`
	Gender                *string    `json:"gender" db:"gender"`
	MaritalStatus         *string    `json:"marital_status" db:"marital_status"`
	Phone                 *string    `json:"phone" db:"phone"`
	Email                 *string    `json:"email" db:"email"`
	PrimaryLanguage       *string    `json:"primary_language" db:"primary_language"`
	LanguagesSpoken       []string   `json:"languages_spoken" db:"languages_spoken"`
	ProfilePictureURL     *string    `json:"profile_picture_url" db:"profile_picture_url"`
	Latitude              *float64   `json:"latitude" db:"latitude"`
	Longitude             *float64   `json:"longitude" db:"longitude"`
	MaxPharmacyDistanceKm *float64   `json:"max_pharmacy_distance_km" db:"max_pharmacy_distance_km"`
	LocationUpdatedAt     *time.Time `json:"location_updated_at" db:"location_updated_at"`
	IsActive              bool       `json:"is_active" db:"is_active"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

type ProfileInput struct {
	FirstName       string   `json:"first_name" validate:"required,min=1"`
	LastName        string   `json:"last_name" validate:"required,min=1"`
	Title           *string  `json:"title"`
	MiddleName      *string  `json:"middle_name"`
	NickName        *string  `json:"nick_name"`
	IDNumber        *string  `json:"id_number"`
	PassportNumber  *string  `json:"passport_number"`
	Citizenship     *string  `json:"citizenship"`
	DateOfBirth     *string  `json:"date_of_birth" validate:"omitempty,isodate"`
	Gender          *string  `json:"gender" validate:"omitempty,oneof=male female non-binary prefer-not-to-say"`
	MaritalStatus   *string  `json:"marital_status" validate:"omitempty,oneof=single married divorced widowed separated"`
	Phone           *string  `json:"phone" validate:"omitempty,phone"`
	Email           *string  `json:"email" validate:"omitempty,email"`
	PrimaryLanguage *string  `json:"primary_language"`
	LanguagesSpoken []string `json:"languages_spoken" validate:"omitempty,dive,min=1"`
}

type LocationInput struct {
	Latitude              *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude             *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	MaxPharmacyDistanceKm *float64 `json:"max_pharmacy_distance_km" validate:"omitempty,gt=0,lte=1000"`
}

var ProfileTable = crud.Table{
	Name:       "patient__persinfo__profile",
	IDColumn:   "profile_id",
	SoftDelete: true,
}

// ProfileHandler serves the profile record plus its location and picture
// sub-resources.
type ProfileHandler struct {
	*crud.Single[Profile, ProfileInput]
	repo  crud.SingleRepository[Profile]
	store storage.ObjectStore
}

func NewProfileHandler(repo crud.SingleRepository[Profile], store storage.ObjectStore) *ProfileHandler {
	return &ProfileHandler{
		Single: &crud.Single[Profile, ProfileInput]{Repo: repo},
		repo:   repo,
		store:  store,
	}
}

func (h *ProfileHandler) RegisterRoutes(g *echo.Group) {
	h.Single.RegisterRoutes(g)
	g.PUT("/location", h.UpdateLocation)
	g.POST("/picture", h.UploadPicture)
}

func (h *ProfileHandler) UpdateLocation(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	var in LocationInput
	if err := crud.BindAndValidate(c, &in); err != nil {
		return err
	}
	values := crud.ValuesOf(&in)
	values["location_updated_at"] = time.Now().UTC()

	row, err := h.repo.Upsert(c.Request().Context(), userID, values)
	if err != nil {
		return httperr.Internal(err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *ProfileHandler) UploadPicture(c echo.Context) error {
	userID, err := crud.UserID(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return httperr.Validation(map[string][]string{"file": {"required"}})
	}
	contentType := file.Header.Get("Content-Type")
	ext, ok := pictureTypes[contentType]
	if !ok {
		return httperr.New(http.StatusUnsupportedMediaType, "Unsupported image type")
	}
	if file.Size > maxProfilePictureSize {
		return httperr.New(http.StatusRequestEntityTooLarge, "File too large")
	}

	key, err := storage.UserPath(userID.String(), fmt.Sprintf("avatar_%d.%s", time.Now().UnixMilli(), ext))
	if err != nil {
		return httperr.Internal(err)
	}
	src, err := file.Open()
	if err != nil {
		return httperr.Internal(err)
	}
	defer src.Close()

	ctx := c.Request().Context()
	if _, err := h.store.Put(ctx, storage.BucketProfileImages, key, contentType, src, file.Size); err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return httperr.New(http.StatusRequestEntityTooLarge, "File too large")
		}
		return httperr.Internal(err)
	}

	prev, err := h.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, crud.ErrNotFound) {
		return httperr.Internal(err)
	}
	row, err := h.repo.Upsert(ctx, userID, crud.Values{"profile_picture_url": key})
	if err != nil {
		return httperr.Internal(err)
	}
	if prev != nil && prev.ProfilePictureURL != nil {
		old := *prev.ProfilePictureURL
		if old != key && storage.OwnedBy(userID.String(), old) {
			if err := h.store.Remove(ctx, storage.BucketProfileImages, old); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				zerolog.Ctx(ctx).Warn().Err(err).Str("key", old).Msg("failed to remove previous profile picture")
			}
		}
	}
	return c.JSON(http.StatusOK, row)
}
