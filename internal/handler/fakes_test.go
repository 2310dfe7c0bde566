package handler

import (
	"context"
	"database/sql"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/repository"
	"github.com/iliyamo/farm-records/internal/service"
	"github.com/iliyamo/farm-records/internal/utils"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

// newCtx builds a context for target with an optional JSON body and user.
func newCtx(e *echo.Echo, method, target, body, uid string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != "" {
		c.Set("user_id", uid)
	}
	return c, rec
}

// ----- users & tokens -----

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, email, name, password string, cost int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return "", repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.byID[id] = &model.User{ID: id, Email: email, Name: name, PasswordHash: hash, IsActive: true, CreatedAt: time.Now().UTC()}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id, name, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrUserNotFound
	}
	u.Name = name
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || !u.IsActive {
		return repository.ErrUserNotFound
	}
	u.IsActive = false
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	owner   map[string]string
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owner: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.owner[hash]
	if !ok || m.revoked[hash] {
		return "", sql.ErrNoRows
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, uid := range m.owner {
		if uid == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

// ----- services -----

// stubCultures answers every call with the configured values and records
// the arguments it saw.
type stubCultures struct {
	view   *service.CultureView
	page   service.Page[service.CultureView]
	export []service.CultureView
	err    error

	gotOwner string
	gotID    string
	gotQuery service.ListQuery
	gotPatch service.CulturePatch
	gotInput service.CultureInput
}

func (s *stubCultures) Create(_ context.Context, owner string, in service.CultureInput) (*service.CultureView, error) {
	s.gotOwner, s.gotInput = owner, in
	return s.view, s.err
}
func (s *stubCultures) Get(_ context.Context, owner, id string) (*service.CultureView, error) {
	s.gotOwner, s.gotID = owner, id
	return s.view, s.err
}
func (s *stubCultures) List(_ context.Context, owner string, q service.ListQuery) (service.Page[service.CultureView], error) {
	s.gotOwner, s.gotQuery = owner, q
	return s.page, s.err
}
func (s *stubCultures) Export(_ context.Context, owner string, q service.ListQuery) ([]service.CultureView, error) {
	s.gotOwner, s.gotQuery = owner, q
	return s.export, s.err
}
func (s *stubCultures) Update(_ context.Context, owner, id string, p service.CulturePatch) (*service.CultureView, error) {
	s.gotOwner, s.gotID, s.gotPatch = owner, id, p
	return s.view, s.err
}
func (s *stubCultures) Delete(_ context.Context, owner, id string) error {
	s.gotOwner, s.gotID = owner, id
	return s.err
}

type stubProperties struct {
	view *service.PropertyView
	page service.Page[service.PropertyView]
	err  error

	gotPatch service.PropertyPatch
	gotQuery service.ListQuery
}

func (s *stubProperties) Create(context.Context, string, service.PropertyInput) (*service.PropertyView, error) {
	return s.view, s.err
}
func (s *stubProperties) Get(context.Context, string, string) (*service.PropertyView, error) {
	return s.view, s.err
}
func (s *stubProperties) List(_ context.Context, _ string, q service.ListQuery) (service.Page[service.PropertyView], error) {
	s.gotQuery = q
	return s.page, s.err
}
func (s *stubProperties) Update(_ context.Context, _, _ string, p service.PropertyPatch) (*service.PropertyView, error) {
	s.gotPatch = p
	return s.view, s.err
}
func (s *stubProperties) Delete(context.Context, string, string) error { return s.err }

type stubActivities struct {
	view *service.ActivityView
	err  error

	gotQuery   service.ActivityFilterQuery
	gotPatch   service.ActivityPatch
	gotNames   []string
	gotBodies  []string
	gotRemoved string
}

func (s *stubActivities) Create(context.Context, string, service.ActivityInput) (*service.ActivityView, error) {
	return s.view, s.err
}
func (s *stubActivities) Get(context.Context, string, string) (*service.ActivityView, error) {
	return s.view, s.err
}
func (s *stubActivities) List(_ context.Context, _ string, q service.ActivityFilterQuery) (service.Page[service.ActivityView], error) {
	s.gotQuery = q
	return service.Page[service.ActivityView]{Data: []service.ActivityView{}, Page: 1, LastPage: 1}, s.err
}
func (s *stubActivities) Update(_ context.Context, _, _ string, p service.ActivityPatch) (*service.ActivityView, error) {
	s.gotPatch = p
	return s.view, s.err
}
func (s *stubActivities) Delete(context.Context, string, string) error { return s.err }
func (s *stubActivities) AddAttachments(_ context.Context, _, _ string, ups []service.Upload) (*service.ActivityView, error) {
	for _, u := range ups {
		b, _ := io.ReadAll(u.Body)
		s.gotNames = append(s.gotNames, u.Name)
		s.gotBodies = append(s.gotBodies, string(b))
	}
	return s.view, s.err
}
func (s *stubActivities) RemoveAttachment(_ context.Context, _, _, name string) (*service.ActivityView, error) {
	s.gotRemoved = name
	return s.view, s.err
}

func hashOf(raw string) string { return utils.HashRefreshRaw(raw) }
