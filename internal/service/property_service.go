package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/farm-records/internal/model"
	"github.com/iliyamo/farm-records/internal/repository"
)

// PropertyStore is the persistence the property service needs.
type PropertyStore interface {
	Create(ctx context.Context, p *model.Property) error
	GetByID(ctx context.Context, id string) (*model.Property, error)
	ListByOwner(ctx context.Context, ownerID, search string, limit, offset int) ([]*model.Property, int, error)
	Update(ctx context.Context, p *model.Property) error
	SoftDeleteByIDAndOwner(ctx context.Context, id, ownerID string) error
}

type PropertyInput struct {
	Name           string  `json:"name" validate:"required,max=120"`
	Address        string  `json:"address" validate:"required,max=255"`
	TotalArea      float64 `json:"totalArea" validate:"gt=0"`
	ProductionArea float64 `json:"productionArea" validate:"gte=0"`
	MainCrop       string  `json:"mainCrop" validate:"required,max=120"`
}

type PropertyPatch struct {
	Name           *string  `json:"name"`
	Address        *string  `json:"address"`
	TotalArea      *float64 `json:"totalArea"`
	ProductionArea *float64 `json:"productionArea"`
	MainCrop       *string  `json:"mainCrop"`
}

type PropertyView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	TotalArea      float64   `json:"totalArea"`
	ProductionArea float64   `json:"productionArea"`
	MainCrop       string    `json:"mainCrop"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PropertyService implements owner-scoped property management.
type PropertyService struct {
	properties PropertyStore
}

func NewPropertyService(properties PropertyStore) *PropertyService {
	return &PropertyService{properties: properties}
}

func (s *PropertyService) Create(ctx context.Context, ownerID string, in PropertyInput) (*PropertyView, error) {
	p, err := buildProperty(in)
	if err != nil {
		return nil, err
	}
	p.UserID = ownerID
	if err := s.properties.Create(ctx, p); err != nil {
		return nil, err
	}
	v := toPropertyView(p)
	return &v, nil
}

func (s *PropertyService) Get(ctx context.Context, ownerID, id string) (*PropertyView, error) {
	p, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	v := toPropertyView(p)
	return &v, nil
}

// List pages through the owner's active properties.  Sorting is fixed
// to name.
func (s *PropertyService) List(ctx context.Context, ownerID string, q ListQuery) (Page[PropertyView], error) {
	page, limit := NormalizePage(q.Page, q.Limit)
	items, total, err := s.properties.ListByOwner(ctx, ownerID, q.Search, limit, offset(page, limit))
	if err != nil {
		return Page[PropertyView]{}, err
	}
	views := make([]PropertyView, 0, len(items))
	for _, p := range items {
		views = append(views, toPropertyView(p))
	}
	return newPage(views, total, page, limit), nil
}

func (s *PropertyService) Update(ctx context.Context, ownerID, id string, patch PropertyPatch) (*PropertyView, error) {
	existing, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	p, err := buildProperty(mergeProperty(existing, patch))
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.UserID = ownerID
	if err := s.properties.Update(ctx, p); err != nil {
		return nil, err
	}
	v := toPropertyView(p)
	return &v, nil
}

// Delete soft-deletes the property together with its cultures.
func (s *PropertyService) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.properties.SoftDeleteByIDAndOwner(ctx, id, ownerID)
}

func (s *PropertyService) load(ctx context.Context, ownerID, id string) (*model.Property, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, repository.ErrPropertyNotFound
	}
	if p.UserID != ownerID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}

func buildProperty(in PropertyInput) (*model.Property, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.MainCrop = strings.TrimSpace(in.MainCrop)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.ProductionArea > in.TotalArea {
		return nil, invalid("productionArea", "must not exceed totalArea")
	}
	return &model.Property{
		Name:           in.Name,
		Address:        in.Address,
		TotalArea:      in.TotalArea,
		ProductionArea: in.ProductionArea,
		MainCrop:       in.MainCrop,
	}, nil
}

func mergeProperty(p *model.Property, patch PropertyPatch) PropertyInput {
	in := PropertyInput{
		Name:           p.Name,
		Address:        p.Address,
		TotalArea:      p.TotalArea,
		ProductionArea: p.ProductionArea,
		MainCrop:       p.MainCrop,
	}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Address != nil {
		in.Address = *patch.Address
	}
	if patch.TotalArea != nil {
		in.TotalArea = *patch.TotalArea
	}
	if patch.ProductionArea != nil {
		in.ProductionArea = *patch.ProductionArea
	}
	if patch.MainCrop != nil {
		in.MainCrop = *patch.MainCrop
	}
	return in
}

func toPropertyView(p *model.Property) PropertyView {
	return PropertyView{
		ID:             p.ID,
		Name:           p.Name,
		Address:        p.Address,
		TotalArea:      p.TotalArea,
		ProductionArea: p.ProductionArea,
		MainCrop:       p.MainCrop,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
