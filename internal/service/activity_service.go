package service

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/repository"
	"github.com/iliyamo/farm-records/internal/storage"
)

// ActivityStore is the persistence the activity service needs.
type ActivityStore interface {
	Create(ctx context.Context, a *model.Activity) error
	GetByID(ctx context.Context, id string) (*model.Activity, error)
	ListByOwner(ctx context.Context, ownerID string, f repository.ActivityFilter, limit, offset int) ([]*model.Activity, int, error)
	Update(ctx context.Context, a *model.Activity) error
	SetAttachments(ctx context.Context, id string, keys []string) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) ([]string, error)
}

// CultureLookup resolves the culture an activity points at.
type CultureLookup interface {
	GetByID(ctx context.Context, id string) (*model.Culture, error)
}

type ActivityInput struct {
	CultureID    *string `json:"cultureId" validate:"omitempty,uuid"`
	Type         string  `json:"type" validate:"required,oneof=soil-preparation application harvest management"`
	Title        string  `json:"title" validate:"required,max=160"`
	Description  *string `json:"description" validate:"omitempty,max=4000"`
	ActivityDate string  `json:"activityDate" validate:"required"`
}

// ActivityPatch leaves absent fields unchanged.  A null or empty
// cultureId detaches the activity from its culture; the same clears the
// description.
type ActivityPatch struct {
	CultureID    OptionalString `json:"cultureId"`
	Type         *string        `json:"type"`
	Title        *string        `json:"title"`
	Description  OptionalString `json:"description"`
	ActivityDate *string        `json:"activityDate"`
}

// ActivityFilterQuery narrows List.
type ActivityFilterQuery struct {
	CultureID string
	Type      string
	Page      int
	Limit     int
}

// Upload is one file received for an activity.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type AttachmentView struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ActivityView struct {
	ID           string           `json:"id"`
	CultureID    *string          `json:"cultureId"`
	Type         string           `json:"type"`
	Title        string           `json:"title"`
	Description  *string          `json:"description"`
	ActivityDate string           `json:"activityDate"`
	Attachments  []AttachmentView `json:"attachments"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// ActivityService implements owner-scoped activity management and the
// attachment files that hang off each activity.  File operations are
// best effort: storage failures are logged and never undo the database
// change they accompany.
type ActivityService struct {
	activities ActivityStore
	cultures   CultureLookup
	files      storage.Store
	log        *zap.Logger
}

func NewActivityService(activities ActivityStore, cultures CultureLookup, files storage.Store, log *zap.Logger) *ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityService{activities: activities, cultures: cultures, files: files, log: log}
}

func (s *ActivityService) Create(ctx context.Context, ownerID string, in ActivityInput) (*ActivityView, error) {
	a, err := buildActivity(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkCulture(ctx, ownerID, a.CultureID); err != nil {
		return nil, err
	}
	a.UserID = ownerID
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, err
	}
	v := s.toView(a)
	return &v, nil
}

func (s *ActivityService) Get(ctx context.Context, ownerID, id string) (*ActivityView, error) {
	a, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	v := s.toView(a)
	return &v, nil
}

func (s *ActivityService) List(ctx context.Context, ownerID string, q ActivityFilterQuery) (Page[ActivityView], error) {
	page, limit := NormalizePage(q.Page, q.Limit)
	f := repository.ActivityFilter{CultureID: strings.TrimSpace(q.CultureID)}
	if f.CultureID != "" {
		if _, err := uuid.Parse(f.CultureID); err != nil {
			return Page[ActivityView]{}, invalid("cultureId", "must be a UUID")
		}
	}
	if t := strings.TrimSpace(q.Type); t != "" {
		f.Type = model.ActivityType(t)
		if !f.Type.Valid() {
			return Page[ActivityView]{}, invalid("type", "must be one of: soil-preparation, application, harvest, management")
		}
	}
	items, total, err := s.activities.ListByOwner(ctx, ownerID, f, limit, offset(page, limit))
	if err != nil {
		return Page[ActivityView]{}, err
	}
	views := make([]ActivityView, 0, len(items))
	for _, a := range items {
		views = append(views, s.toView(a))
	}
	return newPage(views, total, page, limit), nil
}

func (s *ActivityService) Update(ctx context.Context, ownerID, id string, patch ActivityPatch) (*ActivityView, error) {
	existing, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	a, err := buildActivity(mergeActivity(existing, patch))
	if err != nil {
		return nil, err
	}
	if !sameRef(a.CultureID, existing.CultureID) {
		if err := s.checkCulture(ctx, ownerID, a.CultureID); err != nil {
			return nil, err
		}
	}
	a.ID = existing.ID
	a.UserID = ownerID
	if err := s.activities.Update(ctx, a); err != nil {
		return nil, err
	}
	v := s.toView(a)
	return &v, nil
}

// Delete removes the activity and then, best effort, its files.
func (s *ActivityService) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	keys, err := s.activities.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}
	s.removeFiles(ctx, keys)
	return nil
}

// AddAttachments stores files and appends their keys to the activity.
// A file that cannot be stored is logged and skipped.
func (s *ActivityService) AddAttachments(ctx context.Context, ownerID, id string, uploads []Upload) (*ActivityView, error) {
	if len(uploads) == 0 {
		return nil, invalid("files", "at least one file is required")
	}
	a, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	var saved []string
	for _, up := range uploads {
		key := attachmentKey(a.ID, up.Name)
		if err := s.files.Save(ctx, key, up.Body, up.ContentType); err != nil {
			s.log.Error("attachment save failed", zap.String("activity_id", a.ID), zap.String("file", up.Name), zap.Error(err))
			continue
		}
		saved = append(saved, key)
	}
	if len(saved) == 0 {
		v := s.toView(a)
		return &v, nil
	}
	keys := append(append([]string{}, a.Attachments...), saved...)
	if err := s.activities.SetAttachments(ctx, a.ID, keys); err != nil {
		s.removeFiles(ctx, saved)
		return nil, err
	}
	a.Attachments = keys
	v := s.toView(a)
	return &v, nil
}

// RemoveAttachment detaches the file called name and deletes it.
func (s *ActivityService) RemoveAttachment(ctx context.Context, ownerID, id, name string) (*ActivityView, error) {
	a, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, k := range a.Attachments {
		if path.Base(k) == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrAttachmentNotFound
	}
	removed := a.Attachments[idx]
	keys := make([]string, 0, len(a.Attachments)-1)
	keys = append(keys, a.Attachments[:idx]...)
	keys = append(keys, a.Attachments[idx+1:]...)
	if err := s.activities.SetAttachments(ctx, a.ID, keys); err != nil {
		return nil, err
	}
	s.removeFiles(ctx, []string{removed})
	a.Attachments = keys
	v := s.toView(a)
	return &v, nil
}

func (s *ActivityService) removeFiles(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.files.Delete(ctx, k); err != nil {
			s.log.Error("attachment delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *ActivityService) load(ctx context.Context, ownerID, id string) (*model.Activity, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != ownerID {
		return nil, repository.ErrForbidden
	}
	return a, nil
}

func (s *ActivityService) checkCulture(ctx context.Context, ownerID string, cultureID *string) error {
	if cultureID == nil {
		return nil
	}
	c, err := s.cultures.GetByID(ctx, *cultureID)
	if err != nil {
		return err
	}
	if c.Deleted() {
		return repository.ErrCultureNotFound
	}
	if c.UserID != ownerID {
		return repository.ErrForbidden
	}
	return nil
}

func (s *ActivityService) toView(a *model.Activity) ActivityView {
	atts := make([]AttachmentView, 0, len(a.Attachments))
	for _, k := range a.Attachments {
		atts = append(atts, AttachmentView{Name: path.Base(k), URL: s.files.URL(k)})
	}
	return ActivityView{
		ID:           a.ID,
		CultureID:    a.CultureID,
		Type:         string(a.Type),
		Title:        a.Title,
		Description:  a.Description,
		ActivityDate: formatDate(a.ActivityDate),
		Attachments:  atts,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// attachmentKey is activities/<activity>/<random>-<name>.
func attachmentKey(activityID, name string) string {
	return "activities/" + activityID + "/" + uuid.NewString()[:8] + "-" + storage.SafeFileName(name)
}

func buildActivity(in ActivityInput) (*model.Activity, error) {
	in.CultureID = trimPtr(in.CultureID)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Title = strings.TrimSpace(in.Title)
	in.Description = trimPtr(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	date, err := parseDate("activityDate", in.ActivityDate)
	if err != nil {
		return nil, err
	}
	return &model.Activity{
		CultureID:    in.CultureID,
		Type:         model.ActivityType(in.Type),
		Title:        in.Title,
		Description:  in.Description,
		ActivityDate: date,
	}, nil
}

func mergeActivity(a *model.Activity, p ActivityPatch) ActivityInput {
	in := ActivityInput{
		CultureID:    a.CultureID,
		Type:         string(a.Type),
		Title:        a.Title,
		Description:  a.Description,
		ActivityDate: formatDate(a.ActivityDate),
	}
	if p.CultureID.Set {
		in.CultureID = p.CultureID.Value
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description.Set {
		in.Description = p.Description.Value
	}
	if p.ActivityDate != nil {
		in.ActivityDate = *p.ActivityDate
	}
	return in
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
