package persinfo

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/internal/platform/crud"
)

// Address is the user's single address row. Each of the home, postal and
// delivery addresses has its own prefixed set of columns.
type Address struct {
	AddressID uuid.UUID `json:"address_id" db:"address_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`

	HomeAddress1   *string  `json:"home_address1" db:"home_address1"`
	HomeAddress2   *string  `json:"home_address2" db:"home_address2"`
	HomeStreetNo   *string  `json:"home_street_no" db:"home_street_no"`
	HomeStreetName *string  `json:"home_street_name" db:"home_street_name"`
	HomeSuburb     *string  `json:"home_suburb" db:"home_suburb"`
	HomeCity       *string  `json:"home_city" db:"home_city"`
	HomeProvince   *string  `json:"home_province" db:"home_province"`
	HomePostalCode *string  `json:"home_postal_code" db:"home_postal_code"`
	HomeCountry    *string  `json:"home_country" db:"home_country"`
	HomeLatitude   *float64 `json:"home_latitude" db:"home_latitude"`
	HomeLongitude  *float64 `json:"home_longitude" db:"home_longitude"`

	PostalAddress1   *string  `json:"postal_address1" db:"postal_address1"`
	PostalAddress2   *string  `json:"postal_address2" db:"postal_address2"`
	PostalStreetNo   *string  `json:"postal_street_no" db:"postal_street_no"`
	PostalStreetName *string  `json:"postal_street_name" db:"postal_street_name"`
	PostalSuburb     *string  `json:"postal_suburb" db:"postal_suburb"`
	PostalCity       *string  `json:"postal_city" db:"postal_city"`
	PostalProvince   *string  `json:"postal_province" db:"postal_province"`
	PostalPostalCode *string  `json:"postal_postal_code" db:"postal_postal_code"`
	PostalCountry    *string  `json:"postal_country" db:"postal_country"`
	PostalLatitude   *float64 `json:"postal_latitude" db:"postal_latitude"`
	PostalLongitude  *float64 `json:"postal_longitude" db:"postal_longitude"`

	DeliveryAddress1   *string  `json:"delivery_address1" db:"delivery_address1"`
	DeliveryAddress2   *string  `json:"delivery_address2" db:"delivery_address2"`
	DeliveryStreetNo   *string  `json:"delivery_street_no" db:"delivery_street_no"`
	DeliveryStreetName *string  `json:"delivery_street_name" db:"delivery_street_name"`
	DeliverySuburb     *string  `json:"delivery_suburb" db:"delivery_suburb"`
	DeliveryCity       *string  `json:"delivery_city" db:"delivery_city"`
	DeliveryProvince   *string  `json:"delivery_province" db:"delivery_province"`
	DeliveryPostalCode *string  `json:"delivery_postal_code" db:"delivery_postal_code"`
	DeliveryCountry    *string  `json:"delivery_country" db:"delivery_country"`
	DeliveryLatitude   *float64 `json:"delivery_latitude" db:"delivery_latitude"`
	DeliveryLongitude  *float64 `json:"delivery_longitude" db:"delivery_longitude"`

	PostalSameAsHome   *bool     `json:"postal_same_as_home" db:"postal_same_as_home"`
	DeliverySameAsHome *bool     `json:"delivery_same_as_home" db:"delivery_same_as_home"`
	LiveInComplex      *bool     `json:"live_in_complex" db:"live_in_complex"`
	ComplexNo          *string   `json:"complex_no" db:"complex_no"`
	ComplexName        *string   `json:"complex_name" db:"complex_name"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// AddressInput updates one address type. The base fields are written to the
// columns prefixed with Type.
type AddressInput struct {
	Type               string   `json:"type" db:"-" validate:"required,oneof=home postal delivery"`
	Address1           *string  `json:"address1" validate:"omitempty,min=1,max=200"`
	Address2           *string  `json:"address2" validate:"omitempty,max=200"`
	StreetNo           *string  `json:"street_no" validate:"omitempty,max=50"`
	StreetName         *string  `json:"street_name" validate:"omitempty,max=200"`
	Suburb             *string  `json:"suburb" validate:"omitempty,max=200"`
	City               *string  `json:"city" validate:"omitempty,max=200"`
	Province           *string  `json:"province" validate:"omitempty,max=200"`
	PostalCode         *string  `json:"postal_code" validate:"omitempty,max=20"`
	Country            *string  `json:"country" validate:"omitempty,max=120"`
	Latitude           *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude          *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	PostalSameAsHome   *bool    `json:"postal_same_as_home"`
	DeliverySameAsHome *bool    `json:"delivery_same_as_home"`
	LiveInComplex      *bool    `json:"live_in_complex"`
	ComplexNo          *string  `json:"complex_no" validate:"omitempty,max=50"`
	ComplexName        *string  `json:"complex_name" validate:"omitempty,max=200"`
}

var prefixedAddressFields = map[string]bool{
	"address1": true, "address2": true, "street_no": true, "street_name": true, "suburb": true,
	"city": true, "province": true, "postal_code": true, "country": true, "latitude": true, "longitude": true,
}

var AddressTable = crud.Table{
	Name:     "patient__persinfo__address",
	IDColumn: "address_id",
}

func addressValues(in *AddressInput) (crud.Values, error) {
	out := crud.Values{}
	for k, v := range crud.ValuesOf(in) {
		if prefixedAddressFields[k] {
			k = in.Type + "_" + k
		}
		out[k] = v
	}
	return out, nil
}

func NewAddressResource(repo crud.SingleRepository[Address]) *crud.Single[Address, AddressInput] {
	return &crud.Single[Address, AddressInput]{Repo: repo, Values: addressValues}
}
