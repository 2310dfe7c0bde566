package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/queue"
	"github.com/iliyamo/farm-records/internal/repository"
)

func date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) Clock {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t = date(s).Add(9 * time.Hour)
	}
	return func() time.Time { return t }
}

type fakePropertyStore struct {
	mu    sync.Mutex
	items map[string]*model.Property
	order []string
}

func newFakePropertyStore() *fakePropertyStore {
	return &fakePropertyStore{items: map[string]*model.Property{}}
}

func (f *fakePropertyStore) add(owner, name string) *model.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &model.Property{ID: uuid.NewString(), UserID: owner, Name: name, Address: name + " road",
		TotalArea: 100, ProductionArea: 80, MainCrop: "soy", IsActive: true}
	f.items[p.ID] = p
	f.order = append(f.order, p.ID)
	return p
}

func (f *fakePropertyStore) Create(_ context.Context, p *model.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.NewString()
	p.IsActive = true
	cp := *p
	f.items[p.ID] = &cp
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePropertyStore) GetByID(_ context.Context, id string) (*model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePropertyStore) ListByOwner(_ context.Context, ownerID, search string, limit, offset int) ([]*model.Property, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*model.Property
	term := strings.ToLower(search)
	for _, id := range f.order {
		p := f.items[id]
		if p.UserID != ownerID || !p.IsActive {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Address+" "+p.MainCrop), term) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakePropertyStore) Update(_ context.Context, p *model.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[p.ID]
	if !ok || !cur.IsActive {
		return repository.ErrPropertyNotFound
	}
	if cur.UserID != p.UserID {
		return repository.ErrForbidden
	}
	p.IsActive = true
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePropertyStore) SoftDeleteByIDAndOwner(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok || !p.IsActive {
		return repository.ErrPropertyNotFound
	}
	if p.UserID != ownerID {
		return repository.ErrForbidden
	}
	p.IsActive = false
	return nil
}

type fakeCultureStore struct {
	mu         sync.Mutex
	props      *fakePropertyStore
	items      map[string]*model.Culture
	order      []string
	setCalls   [][]string
	setErr     error
	lastFilter repository.CultureFilter
}

func newFakeCultureStore(props *fakePropertyStore) *fakeCultureStore {
	return &fakeCultureStore{props: props, items: map[string]*model.Culture{}}
}

func (f *fakeCultureStore) add(p *model.Property, name string, planting string, cycle int) *model.Culture {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &model.Culture{ID: uuid.NewString(), UserID: p.UserID, PropertyID: p.ID, Name: name,
		Cultivar: name + " cv", Supplier: "seeds inc", Origin: model.OriginConventional,
		PlantingDate: date(planting), Cycle: cycle, PlantingArea: 10, IsActive: true}
	f.items[c.ID] = c
	f.order = append(f.order, c.ID)
	return c
}

func (f *fakeCultureStore) joined(c *model.Culture) *model.Culture {
	cp := *c
	if p, ok := f.props.items[c.PropertyID]; ok {
		cp.Property = model.PropertySummary{ID: p.ID, Name: p.Name, Address: p.Address,
			TotalArea: p.TotalArea, ProductionArea: p.ProductionArea, MainCrop: p.MainCrop}
	}
	return &cp
}

func (f *fakeCultureStore) state(id string) model.Culture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

func (f *fakeCultureStore) GetByID(_ context.Context, id string) (*model.Culture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.Deleted() {
		return nil, repository.ErrCultureNotFound
	}
	return f.joined(c), nil
}

func (f *fakeCultureStore) ListByOwner(_ context.Context, ownerID string, flt repository.CultureFilter) ([]*model.Culture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = flt
	var out []*model.Culture
	for _, id := range f.order {
		c := f.items[id]
		if c.UserID != ownerID || c.Deleted() {
			continue
		}
		out = append(out, f.joined(c))
	}
	if flt.SortBy == "name" {
		sort.SliceStable(out, func(i, j int) bool {
			if flt.Desc {
				return out[i].Name > out[j].Name
			}
			return out[i].Name < out[j].Name
		})
	}
	return out, nil
}

func (f *fakeCultureStore) Create(_ context.Context, c *model.Culture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.NewString()
	cp := *c
	f.items[c.ID] = &cp
	f.order = append(f.order, c.ID)
	*c = *f.joined(&cp)
	return nil
}

func (f *fakeCultureStore) Update(_ context.Context, c *model.Culture) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[c.ID]
	if !ok || cur.Deleted() {
		return repository.ErrCultureNotFound
	}
	c.IsActive = cur.IsActive
	c.DeactivationReason = cur.DeactivationReason
	cp := *c
	f.items[c.ID] = &cp
	*c = *f.joined(&cp)
	return nil
}

func (f *fakeCultureStore) SetInactive(_ context.Context, ids []string, reason model.DeactivationReason) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return 0, f.setErr
	}
	f.setCalls = append(f.setCalls, append([]string(nil), ids...))
	var n int64
	for _, id := range ids {
		if c, ok := f.items[id]; ok && c.IsActive {
			c.IsActive = false
			c.DeactivationReason = reason
			n++
		}
	}
	return n, nil
}

func (f *fakeCultureStore) SoftDeleteByIDAndOwner(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.Deleted() {
		return repository.ErrCultureNotFound
	}
	if c.UserID != ownerID {
		return repository.ErrForbidden
	}
	c.IsActive = false
	c.DeactivationReason = model.ReasonDeleted
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.CultureCompletedEvent
	err    error
}

func (f *fakePublisher) PublishCultureCompleted(_ context.Context, ev queue.CultureCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeActivityStore struct {
	mu    sync.Mutex
	items map[string]*model.Activity
	order []string
	setErr error
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{items: map[string]*model.Activity{}}
}

func (f *fakeActivityStore) Create(_ context.Context, a *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.NewString()
	if a.Attachments == nil {
		a.Attachments = []string{}
	}
	cp := *a
	f.items[a.ID] = &cp
	f.order = append(f.order, a.ID)
	return nil
}

func (f *fakeActivityStore) GetByID(_ context.Context, id string) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, repository.ErrActivityNotFound
	}
	cp := *a
	cp.Attachments = append([]string{}, a.Attachments...)
	return &cp, nil
}

func (f *fakeActivityStore) ListByOwner(_ context.Context, ownerID string, flt repository.ActivityFilter, limit, offset int) ([]*model.Activity, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*model.Activity
	for _, id := range f.order {
		a, ok := f.items[id]
		if !ok || a.UserID != ownerID {
			continue
		}
		if flt.CultureID != "" && (a.CultureID == nil || *a.CultureID != flt.CultureID) {
			continue
		}
		if flt.Type != "" && a.Type != flt.Type {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeActivityStore) Update(_ context.Context, a *model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[a.ID]
	if !ok {
		return repository.ErrActivityNotFound
	}
	a.Attachments = cur.Attachments
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeActivityStore) SetAttachments(_ context.Context, id string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	a, ok := f.items[id]
	if !ok {
		return repository.ErrActivityNotFound
	}
	a.Attachments = append([]string{}, keys...)
	return nil
}

func (f *fakeActivityStore) DeleteByIDAndOwner(_ context.Context, id, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, repository.ErrActivityNotFound
	}
	if a.UserID != ownerID {
		return nil, repository.ErrForbidden
	}
	delete(f.items, id)
	return a.Attachments, nil
}

// memFiles is an in-memory storage.Store.  Names containing "broken"
// fail to save; keys in failDelete fail to delete.
type memFiles struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failDelete map[string]bool
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}, failDelete: map[string]bool{}}
}

func (m *memFiles) Save(_ context.Context, key string, body io.Reader, _ string) error {
	if strings.Contains(key, "broken") {
		return errors.New("disk full")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[key] {
		return errors.New("permission denied")
	}
	delete(m.objects, key)
	return nil
}

func (m *memFiles) URL(key string) string { return "/uploads/" + key }

func (m *memFiles) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
