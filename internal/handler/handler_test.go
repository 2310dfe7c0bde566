package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/farm-records/internal/config"
	"github.com/iliyamo/farm-records/internal/repository"
	"github.com/iliyamo/farm-records/internal/service"
)

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&service.ValidationError{Field: "cycle", Msg: "must be greater than 0"}, http.StatusBadRequest},
		{repository.ErrForbidden, http.StatusForbidden},
		{repository.ErrCultureNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", repository.ErrPropertyNotFound), http.StatusNotFound},
		{service.ErrAttachmentNotFound, http.StatusNotFound},
		{repository.ErrEmailExists, http.StatusConflict},
		{errNoUser, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	e := newEcho()
	for _, tc := range cases {
		c, rec := newCtx(e, http.MethodGet, "/", "", "")
		require.NoError(t, writeError(c, nil, tc.err))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	e := newEcho()
	c, rec := newCtx(e, http.MethodGet, "/", "", "")
	require.NoError(t, writeError(c, nil, errors.New("dial tcp 10.0.0.5:3306: refused")))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestParseListQuery(t *testing.T) {
	e := newEcho()
	c, _ := newCtx(e, http.MethodGet, "/?search=+milho+&sortBy=daysRemaining&order=DESC&page=2&limit=abc", "", "")
	q, err := parseListQuery(c)
	require.NoError(t, err)
	assert.Equal(t, service.ListQuery{Search: "milho", SortBy: "daysRemaining", Desc: true, Page: 2, Limit: 0}, q)

	c, _ = newCtx(e, http.MethodGet, "/?order=sideways", "", "")
	_, err = parseListQuery(c)
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "order", ve.Field)
}

func TestCultureListPassesQueryAndOwner(t *testing.T) {
	svc := &stubCultures{page: service.Page[service.CultureView]{
		Data:  []service.CultureView{{ID: "c-1", Name: "Milho", DaysRemaining: 12}},
		Total: 1, Page: 1, LastPage: 1,
	}}
	h := NewCultureHandler(svc, nil, nil)
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/cultures?sortBy=plantingDate&page=1&limit=5", "", "u-1")

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", svc.gotOwner)
	assert.Equal(t, "plantingDate", svc.gotQuery.SortBy)
	assert.Equal(t, 5, svc.gotQuery.Limit)

	var body struct {
		Data     []map[string]any `json:"data"`
		Total    int              `json:"total"`
		Page     int              `json:"page"`
		LastPage int              `json:"lastPage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 1, body.LastPage)
	require.Len(t, body.Data, 1)
	assert.EqualValues(t, 12, body.Data[0]["daysRemaining"])
}

func TestCultureGetMapsOwnershipErrors(t *testing.T) {
	e := newEcho()
	for err, status := range map[error]int{
		repository.ErrForbidden:       http.StatusForbidden,
		repository.ErrCultureNotFound: http.StatusNotFound,
	} {
		h := NewCultureHandler(&stubCultures{err: err}, nil, nil)
		c, rec := newCtx(e, http.MethodGet, "/v1/cultures/c-9", "", "u-1")
		c.SetParamNames("id")
		c.SetParamValues("c-9")
		require.NoError(t, h.Get(c))
		assert.Equal(t, status, rec.Code)
	}
}

func TestCultureRequiresIdentity(t *testing.T) {
	h := NewCultureHandler(&stubCultures{}, nil, nil)
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/cultures", "", "")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCulturePatchBindsOnlyPresentFields(t *testing.T) {
	svc := &stubCultures{view: &service.CultureView{ID: "c-1"}}
	h := NewCultureHandler(svc, nil, nil)
	c, rec := newCtx(newEcho(), http.MethodPatch, "/v1/cultures/c-1", `{"cycle":150}`, "u-1")
	c.SetParamNames("id")
	c.SetParamValues("c-1")

	require.NoError(t, h.Patch(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotPatch.Cycle)
	assert.Equal(t, 150, *svc.gotPatch.Cycle)
	assert.Nil(t, svc.gotPatch.Name)
	assert.Equal(t, "c-1", svc.gotID)
}

func TestCultureExportWritesWorkbook(t *testing.T) {
	svc := &stubCultures{export: []service.CultureView{{ID: "c-1", Name: "Soja", PlantingDate: "2024-01-01", Cycle: 120}}}
	h := NewCultureHandler(svc, nil, nil)
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/cultures/export?search=soja", "", "u-1")

	require.NoError(t, h.Export(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment; filename=\"cultures-")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
	assert.Equal(t, "soja", svc.gotQuery.Search)
}

func TestPropertyValidationErrorCarriesField(t *testing.T) {
	svc := &stubProperties{err: &service.ValidationError{Field: "productionArea", Msg: "must not exceed totalArea"}}
	h := NewPropertyHandler(svc, nil)
	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/properties", `{"name":"Sitio","totalArea":10,"productionArea":20}`, "u-1")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"must not exceed totalArea","field":"productionArea"}`, rec.Body.String())
}

func TestPropertyReplaceSendsEveryField(t *testing.T) {
	svc := &stubProperties{view: &service.PropertyView{ID: "p-1"}}
	h := NewPropertyHandler(svc, nil)
	c, rec := newCtx(newEcho(), http.MethodPut, "/v1/properties/p-1",
		`{"name":"Sitio","address":"Rua 1","totalArea":10,"productionArea":4,"mainCrop":"cafe"}`, "u-1")
	c.SetParamNames("id")
	c.SetParamValues("p-1")

	require.NoError(t, h.Replace(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotPatch.Name)
	require.NotNil(t, svc.gotPatch.ProductionArea)
	assert.Equal(t, 4.0, *svc.gotPatch.ProductionArea)
}

func TestPropertyDelete(t *testing.T) {
	h := NewPropertyHandler(&stubProperties{}, nil)
	c, rec := newCtx(newEcho(), http.MethodDelete, "/v1/properties/p-1", "", "u-1")
	c.SetParamNames("id")
	c.SetParamValues("p-1")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestActivityListFilters(t *testing.T) {
	svc := &stubActivities{}
	h := NewActivityHandler(svc, 1, nil)
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/activities?cultureId=c-1&type=harvest&page=3", "", "u-1")

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ActivityFilterQuery{CultureID: "c-1", Type: "harvest", Page: 3}, svc.gotQuery)
}

func TestActivityReplaceWithoutCultureDetaches(t *testing.T) {
	svc := &stubActivities{view: &service.ActivityView{ID: "a-1"}}
	h := NewActivityHandler(svc, 1, nil)
	c, _ := newCtx(newEcho(), http.MethodPut, "/v1/activities/a-1",
		`{"type":"harvest","title":"Colheita","activityDate":"2024-05-01"}`, "u-1")
	c.SetParamNames("id")
	c.SetParamValues("a-1")

	require.NoError(t, h.Replace(c))
	assert.True(t, svc.gotPatch.CultureID.Set)
	assert.Nil(t, svc.gotPatch.CultureID.Value)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestActivityUploadAttachments(t *testing.T) {
	svc := &stubActivities{view: &service.ActivityView{ID: "a-1"}}
	h := NewActivityHandler(svc, 1, nil)
	body, ct := multipartBody(t, map[string]string{"laudo.pdf": "pdf-bytes"})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/v1/activities/a-1/attachments", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u-1")
	c.SetParamNames("id")
	c.SetParamValues("a-1")

	require.NoError(t, h.UploadAttachments(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"laudo.pdf"}, svc.gotNames)
	assert.Equal(t, []string{"pdf-bytes"}, svc.gotBodies)
}

func TestActivityUploadRejectsNonMultipart(t *testing.T) {
	h := NewActivityHandler(&stubActivities{}, 1, nil)
	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/activities/a-1/attachments", `{}`, "u-1")
	require.NoError(t, h.UploadAttachments(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityDeleteAttachmentNotFound(t *testing.T) {
	svc := &stubActivities{err: service.ErrAttachmentNotFound}
	h := NewActivityHandler(svc, 1, nil)
	c, rec := newCtx(newEcho(), http.MethodDelete, "/v1/activities/a-1/attachments/x.jpg", "", "u-1")
	c.SetParamNames("id", "name")
	c.SetParamValues("a-1", "x.jpg")

	require.NoError(t, h.DeleteAttachment(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "x.jpg", svc.gotRemoved)
}

type downDB struct{ err error }

func (d downDB) PingContext(context.Context) error { return d.err }

func TestHealth(t *testing.T) {
	e := newEcho()
	c, rec := newCtx(e, http.MethodGet, "/healthz", "", "")
	require.NoError(t, NewHealthHandler(downDB{}).Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newCtx(e, http.MethodGet, "/healthz", "", "")
	require.NoError(t, NewHealthHandler(downDB{err: errors.New("down")}).Health(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ----- auth -----

type recordingCache struct{ dropped []string }

func (r *recordingCache) InvalidateUser(_ context.Context, uid string) error {
	r.dropped = append(r.dropped, uid)
	return nil
}

func newAuthWithCache(cache CacheInvalidator) (*AuthHandler, *memUsers, *memTokens) {
	users, tokens := newMemUsers(), newMemTokens()
	cfg := config.Config{JWTSecret: "s3cret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	return NewAuthHandler(cfg, users, tokens, cache, nil), users, tokens
}

func newAuth() (*AuthHandler, *memUsers, *memTokens) { return newAuthWithCache(nil) }

func register(t *testing.T, h *AuthHandler, email, password string) authResp {
	t.Helper()
	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/register",
		fmt.Sprintf(`{"email":%q,"name":"Ana","password":%q}`, email, password), "")
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h, _, _ := newAuth()
	resp := register(t, h, " Ana@Farm.io ", "password123")
	assert.Equal(t, "ana@farm.io", resp.User.Email)
	assert.NotEmpty(t, resp.Access.Token)
	assert.NotEmpty(t, resp.Refresh.Token)

	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/login", `{"email":"ana@farm.io","password":"password123"}`, "")
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/login", `{"email":"ana@farm.io","password":"wrong-pass"}`, "")
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/login", `{"email":"nobody@farm.io","password":"password123"}`, "")
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h, _, _ := newAuth()
	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/register", `{"email":"not-an-email","password":"password123"}`, "")
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"email"`)

	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/register", `{"email":"a@b.io","password":"short"}`, "")
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _, _ := newAuth()
	register(t, h, "ana@farm.io", "password123")
	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/register", `{"email":"ana@farm.io","password":"password123"}`, "")
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshRotates(t *testing.T) {
	h, _, _ := newAuth()
	resp := register(t, h, "ana@farm.io", "password123")
	body := fmt.Sprintf(`{"refresh_token":%q}`, resp.Refresh.Token)

	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/refresh", body, "")
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, resp.Refresh.Token, rotated.Refresh.Token)

	// the old token is gone
	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/refresh", body, "")
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/refresh-access", fmt.Sprintf(`{"refresh_token":%q}`, rotated.Refresh.Token), "")
	require.NoError(t, h.RefreshAccess(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access"`)
}

func TestLogout(t *testing.T) {
	h, _, tokens := newAuth()
	resp := register(t, h, "ana@farm.io", "password123")

	c, rec := newCtx(newEcho(), http.MethodPost, "/v1/auth/logout", "", "")
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPost, "/v1/auth/logout", "", "")
	c.Request().Header.Set("Authorization", "Bearer "+resp.Access.Token)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := tokens.ValidateRefresh(context.Background(), hashOf(resp.Refresh.Token))
	assert.Error(t, err, "every session of the user is revoked")
}

func TestMeLifecycle(t *testing.T) {
	h, users, _ := newAuth()
	resp := register(t, h, "ana@farm.io", "password123")
	uid := resp.User.ID

	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/me", "", uid)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ana@farm.io"`)

	c, rec = newCtx(newEcho(), http.MethodPatch, "/v1/me", `{"password":"newpassword1","currentPassword":"nope"}`, uid)
	require.NoError(t, h.UpdateMe(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodPatch, "/v1/me", `{"name":"Ana Maria"}`, uid)
	require.NoError(t, h.UpdateMe(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	u, err := users.GetByID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", u.Name)

	c, rec = newCtx(newEcho(), http.MethodDelete, "/v1/me", "", uid)
	require.NoError(t, h.DeleteMe(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = newCtx(newEcho(), http.MethodGet, "/v1/me", "", uid)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMeDropsCachedResponses(t *testing.T) {
	cache := &recordingCache{}
	h, _, _ := newAuthWithCache(cache)
	resp := register(t, h, "ana@farm.io", "password123")

	c, rec := newCtx(newEcho(), http.MethodDelete, "/v1/me", "", resp.User.ID)
	require.NoError(t, h.DeleteMe(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{resp.User.ID}, cache.dropped)
}

func TestCultureExportNamesFileInFarmZone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*3600)
	h := NewCultureHandler(&stubCultures{}, saoPaulo, nil)
	// 01:30 UTC on the 2nd is still the 1st on the farm
	h.Now = func() time.Time { return time.Date(2025, 6, 2, 1, 30, 0, 0, time.UTC) }
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/cultures/export", "", "u-1")

	require.NoError(t, h.Export(c))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `"cultures-2025-06-01.xlsx"`)
}

func TestMalformedIDIsBadRequest(t *testing.T) {
	h := NewCultureHandler(&stubCultures{err: &service.ValidationError{Field: "id", Msg: "must be a UUID"}}, nil, nil)
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/cultures/not-a-uuid", "", "u-1")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"must be a UUID","field":"id"}`, rec.Body.String())
}
