// Package models holds the property-management records the rehearsal
// workload writes through the harness, plus the typed identifiers that keep
// them storable across every backend. Host applications migrating their own
// entities use these as the reference for satisfying the storage contract.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// JSONMap stores loosely structured attributes: jsonb in PostgreSQL, a
// nested object in SurrealDB, a plain map in JSON documents.
type JSONMap map[string]any

// Value implements driver.Valuer for database storage.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database retrieval.
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

type ListingStatus string

const (
	ListingStatusDraft    ListingStatus = "draft"
	ListingStatusActive   ListingStatus = "active"
	ListingStatusArchived ListingStatus = "archived"
)

type LeaseStatus string

const (
	LeaseStatusPending LeaseStatus = "pending"
	LeaseStatusActive  LeaseStatus = "active"
	LeaseStatusEnded   LeaseStatus = "ended"
)

// Property is a managed building or unit.
type Property struct {
	ID           PropertyID `gorm:"type:uuid;primary_key" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	AddressLine1 string     `gorm:"not null" json:"address_line1"`
	City         string     `gorm:"not null" json:"city"`
	Region       string     `json:"region,omitempty"`
	PostalCode   string     `json:"postal_code,omitempty"`
	Attributes   JSONMap    `gorm:"type:jsonb" json:"attributes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewProperty(name, addressLine1, city string) *Property {
	now := time.Now().UTC()
	return &Property{
		ID:           NewPropertyID(),
		Name:         name,
		AddressLine1: addressLine1,
		City:         city,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// BeforeCreate hook to generate ID if not set
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPropertyID()
	}
	return nil
}

func (p Property) EntityID() string {
	if p.ID.IsZero() {
		return ""
	}
	return p.ID.String()
}

func (Property) TableName() string { return "properties" }

// Listing advertises a property for rent.
type Listing struct {
	ID               ListingID     `gorm:"type:uuid;primary_key" json:"id"`
	PropertyID       PropertyID    `gorm:"type:uuid;not null" json:"property_id"`
	Title            string        `gorm:"not null" json:"title"`
	Status           ListingStatus `gorm:"not null" json:"status"`
	MonthlyRentCents int64         `gorm:"not null" json:"monthly_rent_cents"`
	Currency         string        `gorm:"not null" json:"currency"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func NewListing(propertyID PropertyID, title string, monthlyRentCents int64) *Listing {
	now := time.Now().UTC()
	return &Listing{
		ID:               NewListingID(),
		PropertyID:       propertyID,
		Title:            title,
		Status:           ListingStatusDraft,
		MonthlyRentCents: monthlyRentCents,
		Currency:         "USD",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// BeforeCreate hook to generate ID if not set
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID.IsZero() {
		l.ID = NewListingID()
	}
	return nil
}

func (l Listing) EntityID() string {
	if l.ID.IsZero() {
		return ""
	}
	return l.ID.String()
}

func (Listing) TableName() string { return "listings" }

// Lease binds a tenant to a property for a term.
type Lease struct {
	ID           LeaseID     `gorm:"type:uuid;primary_key" json:"id"`
	PropertyID   PropertyID  `gorm:"type:uuid;not null" json:"property_id"`
	TenantName   string      `gorm:"not null" json:"tenant_name"`
	TenantEmail  string      `gorm:"not null" json:"tenant_email"`
	StartDate    time.Time   `gorm:"not null" json:"start_date"`
	EndDate      time.Time   `gorm:"not null" json:"end_date"`
	RentCents    int64       `gorm:"not null" json:"rent_cents"`
	DepositCents int64       `json:"deposit_cents,omitempty"`
	Status       LeaseStatus `gorm:"not null" json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func NewLease(propertyID PropertyID, tenantName, tenantEmail string, start, end time.Time, rentCents int64) *Lease {
	now := time.Now().UTC()
	return &Lease{
		ID:          NewLeaseID(),
		PropertyID:  propertyID,
		TenantName:  tenantName,
		TenantEmail: tenantEmail,
		StartDate:   start,
		EndDate:     end,
		RentCents:   rentCents,
		Status:      LeaseStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// BeforeCreate hook to generate ID if not set
func (l *Lease) BeforeCreate(tx *gorm.DB) error {
	if l.ID.IsZero() {
		l.ID = NewLeaseID()
	}
	return nil
}

func (l Lease) EntityID() string {
	if l.ID.IsZero() {
		return ""
	}
	return l.ID.String()
}

func (Lease) TableName() string { return "leases" }
