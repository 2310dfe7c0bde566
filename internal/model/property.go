package model

import "time"

// Property represents a farm owned by a user.  A property is the
// parent of every culture planted on it.  Deleting a property is a
// soft delete: IsActive flips to false and the property is treated as
// missing from then on.
//
// Fields:
//  ID             – UUID primary key.
//  UserID         – owner of the property.
//  Name           – property name.
//  Address        – free-text address.
//  TotalArea      – total area in hectares.
//  ProductionArea – cultivated area in hectares, never above TotalArea.
//  MainCrop       – main crop grown on the property.
//  IsActive       – false once soft-deleted.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Property struct {
	ID             string    // properties.id
	UserID         string    // properties.user_id
	Name           string    // properties.name
	Address        string    // properties.address
	TotalArea      float64   // properties.total_area
	ProductionArea float64   // properties.production_area
	MainCrop       string    // properties.main_crop
	IsActive       bool      // properties.is_active
	CreatedAt      time.Time // properties.created_at
	UpdatedAt      time.Time // properties.updated_at
}

// PropertySummary is the denormalized slice of a property that is
// embedded into culture views.
type PropertySummary struct {
	ID             string
	Name           string
	Address        string
	TotalArea      float64
	ProductionArea float64
	MainCrop       string
}
