package models

import "time"

// Property is a real-estate parcel from county property appraiser data,
// identified within a county by its parcel number.
type Property struct {
	ID              int64      `json:"id"`
	ParcelID        string     `json:"parcel_id"`
	County          string     `json:"county"`
	Jurisdiction    string     `json:"jurisdiction,omitempty"`
	SitusAddressID  *int64     `json:"situs_address_id,omitempty"` // FK to addresses
	AppraiserURL    string     `json:"appraiser_url,omitempty"`
	LandUseCode     string     `json:"land_use_code,omitempty"`
	Acreage         *float64   `json:"acreage,omitempty"`
	LastSaleDate    *time.Time `json:"last_sale_date,omitempty"`
	LastSalePrice   *float64   `json:"last_sale_price,omitempty"`
	MarketValue     *float64   `json:"market_value,omitempty"`
	AssessedValue   *float64   `json:"assessed_value,omitempty"`
	HomesteadExempt string     `json:"homestead_exempt,omitempty"`
	TaxYear         string     `json:"tax_year,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
