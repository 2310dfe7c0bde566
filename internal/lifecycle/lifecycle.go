// Package lifecycle derives the time-dependent state of a crop cycle
// from its planting date, its length in days and the current date.
// Nothing here reads a clock or touches storage: callers pass "today"
// explicitly so the same inputs always give the same answer.
package lifecycle

import (
	"time"

	"github.com/iliyamo/farm-records/internal/model"
)

// Derived holds the fields computed for a culture on every read.
type Derived struct {
	DaysElapsed         int
	DaysRemaining       int
	ExpectedHarvestDate time.Time
	IsCycleComplete     bool
}

// Midnight strips the time of day from t, keeping its location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// civilDay numbers the calendar date of t (in t's own location) as
// days since the Unix epoch.  Working on the civil date keeps the
// difference exact across daylight-saving transitions.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DaysElapsedRaw returns the number of calendar days from planting to
// today.  It is negative when planting lies in the future.
func DaysElapsedRaw(planting, today time.Time) int {
	return int(civilDay(today) - civilDay(planting))
}

// DaysElapsed is DaysElapsedRaw clamped at zero for display.
func DaysElapsed(planting, today time.Time) int {
	if n := DaysElapsedRaw(planting, today); n > 0 {
		return n
	}
	return 0
}

// ExpectedHarvestDate adds cycle calendar days to the planting date.
func ExpectedHarvestDate(planting time.Time, cycle int) time.Time {
	return Midnight(planting).AddDate(0, 0, cycle)
}

// DaysRemaining is cycle minus the raw elapsed days.  Negative values
// mean the culture is overdue.
func DaysRemaining(cycle, daysElapsedRaw int) int {
	return cycle - daysElapsedRaw
}

// IsCycleComplete reports whether today has reached the expected
// harvest date.
func IsCycleComplete(planting time.Time, cycle int, today time.Time) bool {
	return civilDay(today) >= civilDay(ExpectedHarvestDate(planting, cycle))
}

// ShouldDeactivate reports whether the cycle ended strictly before
// today.  On the harvest day itself the culture is complete but still
// active.
func ShouldDeactivate(planting time.Time, cycle int, today time.Time) bool {
	return DaysElapsedRaw(planting, today) > cycle
}

// Derive computes all derived fields at once.
func Derive(planting time.Time, cycle int, today time.Time) Derived {
	raw := DaysElapsedRaw(planting, today)
	return Derived{
		DaysElapsed:         DaysElapsed(planting, today),
		DaysRemaining:       DaysRemaining(cycle, raw),
		ExpectedHarvestDate: ExpectedHarvestDate(planting, cycle),
		IsCycleComplete:     IsCycleComplete(planting, cycle, today),
	}
}

// ReconcileCycleStates flips every active culture whose cycle has run
// out to inactive and returns the ids that changed, in input order.
// The cultures are updated in place so callers see the new state
// before it is persisted.  Cultures that are already inactive are left
// alone, which makes a second call a no-op.
func ReconcileCycleStates(cultures []*model.Culture, today time.Time) []string {
	var ids []string
	for _, c := range cultures {
		if c == nil || !c.IsActive {
			continue
		}
		if ShouldDeactivate(c.PlantingDate, c.Cycle, today) {
			c.IsActive = false
			c.DeactivationReason = model.ReasonCycleCompleted
			ids = append(ids, c.ID)
		}
	}
	return ids
}
