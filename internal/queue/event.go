// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer for them.
package queue

// CultureCompletedQueue is the default queue for CultureCompletedEvent.
const CultureCompletedQueue = "culture.completed"

// CultureCompletedEvent is published when a read notices that a culture
// has outlived its cycle and deactivates it.  It carries enough
// information for downstream consumers to log or notify without querying
// the primary database.
type CultureCompletedEvent struct {
	CultureID           string `json:"culture_id"`
	UserID              string `json:"user_id"`
	PropertyID          string `json:"property_id"`
	PropertyName        string `json:"property_name"`
	Name                string `json:"name"`
	Cultivar            string `json:"cultivar"`
	PlantingDate        string `json:"planting_date"`
	Cycle               int    `json:"cycle"`
	ExpectedHarvestDate string `json:"expected_harvest_date"`
	CompletedAt         string `json:"completed_at"`
}
