package model

import "time"

// Origin classifies the seed or seedling source of a culture.
type Origin string

const (
	OriginOrganic      Origin = "organic"
	OriginConventional Origin = "conventional"
	OriginTransgenic   Origin = "transgenic"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	switch o {
	case OriginOrganic, OriginConventional, OriginTransgenic:
		return true
	}
	return false
}

// DeactivationReason records why a culture stopped being active.  It
// is empty while the culture is active.
type DeactivationReason string

const (
	ReasonNone           DeactivationReason = ""
	ReasonCycleCompleted DeactivationReason = "CYCLE_COMPLETED"
	ReasonDeleted        DeactivationReason = "DELETED"
)

// Culture is a crop cycle planted on a property.  PlantingDate is a
// calendar date; its time of day carries no meaning.  Cycle is the
// expected length of the cycle in days.
//
// Fields:
//  ID                 – UUID primary key.
//  UserID             – owner of the culture.
//  PropertyID         – property the culture is planted on.
//  Name               – crop name.
//  Cultivar           – cultivar or variety.
//  Supplier           – seed supplier name.
//  Origin             – organic, conventional or transgenic.
//  Observations       – optional notes (nil when absent).
//  PlantingDate       – planting date.
//  Cycle              – cycle length in days (> 0).
//  PlantingArea       – planted area in hectares (> 0).
//  IsActive           – false once completed or deleted.
//  DeactivationReason – why IsActive became false.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
//
// Property and ActivityCount are filled by joined reads only.
type Culture struct {
	ID                 string             // cultures.id
	UserID             string             // cultures.user_id
	PropertyID         string             // cultures.property_id
	Name               string             // cultures.name
	Cultivar           string             // cultures.cultivar
	Supplier           string             // cultures.supplier
	Origin             Origin             // cultures.origin
	Observations       *string            // cultures.observations (nullable)
	PlantingDate       time.Time          // cultures.planting_date
	Cycle              int                // cultures.cycle
	PlantingArea       float64            // cultures.planting_area
	IsActive           bool               // cultures.is_active
	DeactivationReason DeactivationReason // cultures.deactivation_reason (nullable)
	CreatedAt          time.Time          // cultures.created_at
	UpdatedAt          time.Time          // cultures.updated_at

	Property      PropertySummary
	ActivityCount int
}

// Deleted reports whether the culture was removed by its owner, as
// opposed to having completed its cycle.
func (c *Culture) Deleted() bool {
	return c.DeactivationReason == ReasonDeleted
}
