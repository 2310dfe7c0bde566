package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/lifecycle"
	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/queue"
	"github.com/iliyamo/farm-records/internal/repository"
)

// CultureStore is the persistence the culture service needs.
type CultureStore interface {
	GetByID(ctx context.Context, id string) (*model.Culture, error)
	ListByOwner(ctx context.Context, ownerID string, f repository.CultureFilter) ([]*model.Culture, error)
	Create(ctx context.Context, c *model.Culture) error
	Update(ctx context.Context, c *model.Culture) error
	SetInactive(ctx context.Context, ids []string, reason model.DeactivationReason) (int64, error)
	SoftDeleteByIDAndOwner(ctx context.Context, id, ownerID string) error
}

// PropertyLookup resolves the parent property of a culture.
type PropertyLookup interface {
	GetByID(ctx context.Context, id string) (*model.Property, error)
}

// EventPublisher receives lifecycle events.  Failures never fail a
// request.
type EventPublisher interface {
	PublishCultureCompleted(ctx context.Context, ev queue.CultureCompletedEvent) error
}

// Clock returns the current instant.
type Clock func() time.Time

// Sort keys accepted by List.  The derived ones are ordered in memory.
var (
	storedCultureSorts  = map[string]bool{"plantingDate": true, "name": true, "plantingArea": true, "propertyName": true, "cycle": true}
	derivedCultureSorts = map[string]func(v *CultureView) int{
		"daysRemaining": func(v *CultureView) int { return v.DaysRemaining },
		"daysElapsed":   func(v *CultureView) int { return v.DaysElapsed },
	}
)

// CultureInput is the body of a create request.
type CultureInput struct {
	PropertyID   string  `json:"propertyId" validate:"required,uuid"`
	Name         string  `json:"name" validate:"required,max=120"`
	Cultivar     string  `json:"cultivar" validate:"required,max=120"`
	Supplier     string  `json:"supplier" validate:"required,max=120"`
	Origin       string  `json:"origin" validate:"required,oneof=organic conventional transgenic"`
	Observations *string `json:"observations" validate:"omitempty,max=2000"`
	PlantingDate string  `json:"plantingDate" validate:"required"`
	Cycle        int     `json:"cycle" validate:"gt=0,lte=3650"`
	PlantingArea float64 `json:"plantingArea" validate:"gt=0"`
}

// CulturePatch is the body of an update request.  Absent fields are left
// unchanged; observations may be cleared with null or "".
type CulturePatch struct {
	PropertyID   *string        `json:"propertyId"`
	Name         *string        `json:"name"`
	Cultivar     *string        `json:"cultivar"`
	Supplier     *string        `json:"supplier"`
	Origin       *string        `json:"origin"`
	Observations OptionalString `json:"observations"`
	PlantingDate *string        `json:"plantingDate"`
	Cycle        *int           `json:"cycle"`
	PlantingArea *float64       `json:"plantingArea"`
}

// PropertySummaryView is the property block embedded in culture views.
type PropertySummaryView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	TotalArea      float64 `json:"totalArea"`
	ProductionArea float64 `json:"productionArea"`
	MainCrop       string  `json:"mainCrop"`
}

// CultureView is a culture as returned to clients: stored fields, the
// derived lifecycle fields, the property summary and the activity count.
type CultureView struct {
	ID                  string              `json:"id"`
	PropertyID          string              `json:"propertyId"`
	Name                string              `json:"name"`
	Cultivar            string              `json:"cultivar"`
	Supplier            string              `json:"supplier"`
	Origin              string              `json:"origin"`
	Observations        *string             `json:"observations"`
	PlantingDate        string              `json:"plantingDate"`
	Cycle               int                 `json:"cycle"`
	PlantingArea        float64             `json:"plantingArea"`
	IsActive            bool                `json:"isActive"`
	DeactivationReason  string              `json:"deactivationReason,omitempty"`
	DaysElapsed         int                 `json:"daysElapsed"`
	DaysRemaining       int                 `json:"daysRemaining"`
	ExpectedHarvestDate string              `json:"expectedHarvestDate"`
	IsCycleComplete     bool                `json:"isCycleComplete"`
	Property            PropertySummaryView `json:"property"`
	ActivityCount       int                 `json:"activityCount"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// CultureService orchestrates culture reads and writes.  Every read runs
// ReconcileCycleStates over what it loaded and persists the result
// before building views, so a cycle that ran out yesterday is reported
// and stored as inactive by the first read today.
type CultureService struct {
	cultures   CultureStore
	properties PropertyLookup
	events     EventPublisher
	now        Clock
	loc        *time.Location
	log        *zap.Logger

	publishTimeout time.Duration
}

// NewCultureService wires the service.  events may be nil; now defaults
// to time.Now and loc to UTC.
func NewCultureService(cultures CultureStore, properties PropertyLookup, events EventPublisher, now Clock, loc *time.Location, log *zap.Logger) *CultureService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CultureService{
		cultures:       cultures,
		properties:     properties,
		events:         events,
		now:            now,
		loc:            loc,
		log:            log,
		publishTimeout: 3 * time.Second,
	}
}

// today is the current instant in the farm's time zone.  Only its
// calendar date matters to the lifecycle functions.
func (s *CultureService) today() time.Time {
	return s.now().In(s.loc)
}

// Get returns one culture.  A missing or deleted culture yields
// repository.ErrCultureNotFound; someone else's yields
// repository.ErrForbidden.
func (s *CultureService) Get(ctx context.Context, ownerID, id string) (*CultureView, error) {
	c, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	today := s.today()
	if err := s.reconcile(ctx, []*model.Culture{c}, today); err != nil {
		return nil, err
	}
	v := toCultureView(c, today)
	return &v, nil
}

// List returns one page of the owner's cultures after search and sort.
func (s *CultureService) List(ctx context.Context, ownerID string, q ListQuery) (Page[CultureView], error) {
	page, limit := NormalizePage(q.Page, q.Limit)
	views, err := s.collect(ctx, ownerID, q)
	if err != nil {
		return Page[CultureView]{}, err
	}
	return paginate(views, page, limit), nil
}

// Export returns every culture List would return, unpaginated.
func (s *CultureService) Export(ctx context.Context, ownerID string, q ListQuery) ([]CultureView, error) {
	return s.collect(ctx, ownerID, q)
}

func (s *CultureService) collect(ctx context.Context, ownerID string, q ListQuery) ([]CultureView, error) {
	sortBy := strings.TrimSpace(q.SortBy)
	derived, isDerived := derivedCultureSorts[sortBy]
	if sortBy != "" && !isDerived && !storedCultureSorts[sortBy] {
		return nil, invalid("sortBy", "unknown sort key "+sortBy)
	}

	filter := repository.CultureFilter{Search: q.Search, Desc: q.Desc}
	if !isDerived {
		filter.SortBy = sortBy
	}
	items, err := s.cultures.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	// the store may match more loosely (collation); apply the exact rule here
	items = filterCultures(items, q.Search)

	today := s.today()
	if err := s.reconcile(ctx, items, today); err != nil {
		return nil, err
	}

	views := make([]CultureView, 0, len(items))
	for _, c := range items {
		views = append(views, toCultureView(c, today))
	}
	if isDerived {
		sort.SliceStable(views, func(i, j int) bool {
			a, b := derived(&views[i]), derived(&views[j])
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	return views, nil
}

// Create validates in and inserts an active culture on a property the
// owner holds.
func (s *CultureService) Create(ctx context.Context, ownerID string, in CultureInput) (*CultureView, error) {
	c, err := s.buildCulture(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkProperty(ctx, ownerID, c.PropertyID); err != nil {
		return nil, err
	}
	c.UserID = ownerID
	c.IsActive = true
	if err := s.cultures.Create(ctx, c); err != nil {
		return nil, err
	}
	today := s.today()
	if err := s.reconcile(ctx, []*model.Culture{c}, today); err != nil {
		return nil, err
	}
	v := toCultureView(c, today)
	return &v, nil
}

// Update applies patch.  Moving the culture to another property re-runs
// the property checks.  A culture that became inactive stays inactive
// even if the new dates would make it current again.
func (s *CultureService) Update(ctx context.Context, ownerID, id string, patch CulturePatch) (*CultureView, error) {
	existing, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	in := mergeCulture(existing, patch)
	c, err := s.buildCulture(in)
	if err != nil {
		return nil, err
	}
	if c.PropertyID != existing.PropertyID {
		if err := s.checkProperty(ctx, ownerID, c.PropertyID); err != nil {
			return nil, err
		}
	}
	c.ID = existing.ID
	c.UserID = ownerID
	if err := s.cultures.Update(ctx, c); err != nil {
		return nil, err
	}
	today := s.today()
	if err := s.reconcile(ctx, []*model.Culture{c}, today); err != nil {
		return nil, err
	}
	v := toCultureView(c, today)
	return &v, nil
}

// Delete soft-deletes a culture.
func (s *CultureService) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.cultures.SoftDeleteByIDAndOwner(ctx, id, ownerID)
}

func (s *CultureService) load(ctx context.Context, ownerID, id string) (*model.Culture, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	c, err := s.cultures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Deleted() {
		return nil, repository.ErrCultureNotFound
	}
	if c.UserID != ownerID {
		return nil, repository.ErrForbidden
	}
	return c, nil
}

func (s *CultureService) checkProperty(ctx context.Context, ownerID, propertyID string) error {
	p, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return repository.ErrPropertyNotFound
	}
	if p.UserID != ownerID {
		return repository.ErrForbidden
	}
	return nil
}

// reconcile deactivates the cultures whose cycle has run out, persists
// the change and announces it.  A failed write fails the read.
func (s *CultureService) reconcile(ctx context.Context, items []*model.Culture, today time.Time) error {
	ids := lifecycle.ReconcileCycleStates(items, today)
	if len(ids) == 0 {
		return nil
	}
	n, err := s.cultures.SetInactive(ctx, ids, model.ReasonCycleCompleted)
	if err != nil {
		return err
	}
	s.log.Info("cultures completed their cycle", zap.Int("count", len(ids)), zap.Int64("updated", n))
	s.announce(ctx, items, ids, today)
	return nil
}

// announce publishes one event per completed culture.  It gives up at the
// first failure since the broker is most likely down for all of them.
func (s *CultureService) announce(ctx context.Context, items []*model.Culture, ids []string, today time.Time) {
	if s.events == nil {
		return
	}
	completed := make(map[string]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	for _, c := range items {
		if c == nil || !completed[c.ID] {
			continue
		}
		ev := queue.CultureCompletedEvent{
			CultureID:           c.ID,
			UserID:              c.UserID,
			PropertyID:          c.PropertyID,
			PropertyName:        c.Property.Name,
			Name:                c.Name,
			Cultivar:            c.Cultivar,
			PlantingDate:        formatDate(c.PlantingDate),
			Cycle:               c.Cycle,
			ExpectedHarvestDate: formatDate(lifecycle.ExpectedHarvestDate(c.PlantingDate, c.Cycle)),
			CompletedAt:         today.Format(time.RFC3339),
		}
		if err := s.events.PublishCultureCompleted(pctx, ev); err != nil {
			s.log.Warn("publish culture.completed failed", zap.String("culture_id", c.ID), zap.Error(err))
			return
		}
	}
}

func (s *CultureService) buildCulture(in CultureInput) (*model.Culture, error) {
	in.PropertyID = strings.TrimSpace(in.PropertyID)
	in.Name = strings.TrimSpace(in.Name)
	in.Cultivar = strings.TrimSpace(in.Cultivar)
	in.Supplier = strings.TrimSpace(in.Supplier)
	in.Origin = strings.ToLower(strings.TrimSpace(in.Origin))
	in.Observations = trimPtr(in.Observations)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	planting, err := parseDate("plantingDate", in.PlantingDate)
	if err != nil {
		return nil, err
	}
	return &model.Culture{
		PropertyID:   in.PropertyID,
		Name:         in.Name,
		Cultivar:     in.Cultivar,
		Supplier:     in.Supplier,
		Origin:       model.Origin(in.Origin),
		Observations: in.Observations,
		PlantingDate: planting,
		Cycle:        in.Cycle,
		PlantingArea: in.PlantingArea,
	}, nil
}

func mergeCulture(c *model.Culture, p CulturePatch) CultureInput {
	in := CultureInput{
		PropertyID:   c.PropertyID,
		Name:         c.Name,
		Cultivar:     c.Cultivar,
		Supplier:     c.Supplier,
		Origin:       string(c.Origin),
		Observations: c.Observations,
		PlantingDate: formatDate(c.PlantingDate),
		Cycle:        c.Cycle,
		PlantingArea: c.PlantingArea,
	}
	if p.PropertyID != nil {
		in.PropertyID = *p.PropertyID
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Cultivar != nil {
		in.Cultivar = *p.Cultivar
	}
	if p.Supplier != nil {
		in.Supplier = *p.Supplier
	}
	if p.Origin != nil {
		in.Origin = *p.Origin
	}
	if p.Observations.Set {
		in.Observations = p.Observations.Value
	}
	if p.PlantingDate != nil {
		in.PlantingDate = *p.PlantingDate
	}
	if p.Cycle != nil {
		in.Cycle = *p.Cycle
	}
	if p.PlantingArea != nil {
		in.PlantingArea = *p.PlantingArea
	}
	return in
}

func filterCultures(items []*model.Culture, search string) []*model.Culture {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return items
	}
	out := items[:0:0]
	for _, c := range items {
		if strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Cultivar), term) ||
			strings.Contains(strings.ToLower(c.Property.Name), term) {
			out = append(out, c)
		}
	}
	return out
}

func toCultureView(c *model.Culture, today time.Time) CultureView {
	d := lifecycle.Derive(c.PlantingDate, c.Cycle, today)
	return CultureView{
		ID:                  c.ID,
		PropertyID:          c.PropertyID,
		Name:                c.Name,
		Cultivar:            c.Cultivar,
		Supplier:            c.Supplier,
		Origin:              string(c.Origin),
		Observations:        c.Observations,
		PlantingDate:        formatDate(c.PlantingDate),
		Cycle:               c.Cycle,
		PlantingArea:        c.PlantingArea,
		IsActive:            c.IsActive,
		DeactivationReason:  string(c.DeactivationReason),
		DaysElapsed:         d.DaysElapsed,
		DaysRemaining:       d.DaysRemaining,
		ExpectedHarvestDate: formatDate(d.ExpectedHarvestDate),
		IsCycleComplete:     d.IsCycleComplete,
		Property: PropertySummaryView{
			ID:             c.Property.ID,
			Name:           c.Property.Name,
			Address:        c.Property.Address,
			TotalArea:      c.Property.TotalArea,
			ProductionArea: c.Property.ProductionArea,
			MainCrop:       c.Property.MainCrop,
		},
		ActivityCount: c.ActivityCount,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
