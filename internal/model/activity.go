package model

import "time"

// ActivityType is the category of a field activity.
type ActivityType string

const (
	ActivitySoilPreparation ActivityType = "soil-preparation"
	ActivityApplication     ActivityType = "application"
	ActivityHarvest         ActivityType = "harvest"
	ActivityManagement      ActivityType = "management"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivitySoilPreparation, ActivityApplication, ActivityHarvest, ActivityManagement:
		return true
	}
	return false
}

// Activity is a dated record of work done in the field.  It may point
// at a culture; the reference is cleared when that culture row is
// removed.  Attachments holds the storage keys of uploaded files in
// upload order.
type Activity struct {
	ID           string       // activities.id
	UserID       string       // activities.user_id
	CultureID    *string      // activities.culture_id (nullable)
	Type         ActivityType // activities.type
	Title        string       // activities.title
	Description  *string      // activities.description (nullable)
	ActivityDate time.Time    // activities.activity_date
	Attachments  []string     // activities.attachments (JSON array)
	CreatedAt    time.Time    // activities.created_at
	UpdatedAt    time.Time    // activities.updated_at
}
