package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-records/internal/repository"
)

func TestPropertyCreateAndAreas(t *testing.T) {
	svc := NewPropertyService(newFakePropertyStore())
	ctx := context.Background()

	v, err := svc.Create(ctx, alice, PropertyInput{Name: " Boa Vista ", Address: "Estrada 12", TotalArea: 100, ProductionArea: 100, MainCrop: "soy"})
	require.NoError(t, err)
	assert.Equal(t, "Boa Vista", v.Name)
	assert.True(t, v.IsActive)

	_, err = svc.Create(ctx, alice, PropertyInput{Name: "x", Address: "y", TotalArea: 10, ProductionArea: 11, MainCrop: "corn"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "productionArea", ve.Field)

	_, err = svc.Create(ctx, alice, PropertyInput{Name: "x", Address: "y", TotalArea: 0, MainCrop: "corn"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "totalArea", ve.Field)
}

func TestPropertyOwnership(t *testing.T) {
	store := newFakePropertyStore()
	svc := NewPropertyService(store)
	p := store.add(alice, "Boa Vista")
	ctx := context.Background()

	_, err := svc.Get(ctx, bob, p.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	name := "Renamed"
	_, err = svc.Update(ctx, bob, p.ID, PropertyPatch{Name: &name})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, bob, p.ID), repository.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, alice, p.ID))
	_, err = svc.Get(ctx, alice, p.ID)
	assert.ErrorIs(t, err, repository.ErrPropertyNotFound)
}

func TestPropertyUpdateRechecksAreas(t *testing.T) {
	store := newFakePropertyStore()
	svc := NewPropertyService(store)
	p := store.add(alice, "Boa Vista") // 100 total, 80 production
	ctx := context.Background()

	small := 50.0
	_, err := svc.Update(ctx, alice, p.ID, PropertyPatch{TotalArea: &small})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "productionArea", ve.Field)

	prod := 40.0
	v, err := svc.Update(ctx, alice, p.ID, PropertyPatch{TotalArea: &small, ProductionArea: &prod})
	require.NoError(t, err)
	assert.Equal(t, 50.0, v.TotalArea)
	assert.Equal(t, 40.0, v.ProductionArea)
}

func TestPropertyListPaging(t *testing.T) {
	store := newFakePropertyStore()
	svc := NewPropertyService(store)
	for i := 0; i < 12; i++ {
		store.add(alice, fmt.Sprintf("farm %02d", i))
	}
	store.add(bob, "farm of bob")

	page, err := svc.List(context.Background(), alice, ListQuery{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Data, 5)
	assert.Equal(t, "farm 05", page.Data[0].Name)

	page, err = svc.List(context.Background(), alice, ListQuery{Search: "FARM 1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestNormalizePage(t *testing.T) {
	cases := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, 10},
		{-3, -1, 1, 10},
		{2, 25, 2, 25},
		{1, 1000, 1, 100},
	}
	for _, c := range cases {
		p, l := NormalizePage(c.page, c.limit)
		assert.Equal(t, c.wantPage, p)
		assert.Equal(t, c.wantLimit, l)
	}
	assert.Equal(t, 1, LastPage(0, 10))
	assert.Equal(t, 1, LastPage(10, 10))
	assert.Equal(t, 2, LastPage(11, 10))
}
