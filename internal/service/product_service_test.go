package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pharmacy-catalog/internal/event"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/internal/repository"
)

func strPtr(v string) *string {
	return &v
}

func paracetamolInput() model.ProductInput {
	return model.ProductInput{
		MedicineName: strPtr("  Paracetamol "),
		Description:  strPtr("Pain reliever"),
		Price:        strPtr("4.99"),
		DosageForm:   strPtr("Tablet"),
		Uses:         strPtr("Fever, headache"),
		Manufacturer: strPtr("Acme Pharma"),
		ExpiryDate:   strPtr("2027-06-30"),
		DrugNumber:   strPtr("DN-001"),
		Image:        &model.StoredImage{Path: "/uploads/a-para.png", Thumbnail: "/uploads/thumbs/a-para.jpg"},
	}
}

func TestProductService_CreateAndGet(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)
	assert.NoError(t, uuid.Validate(created.ID))
	assert.Equal(t, "Paracetamol", created.MedicineName)
	assert.Equal(t, 4.99, created.Price)
	assert.Equal(t, "/uploads/a-para.png", created.Image)
	assert.Equal(t, "/uploads/thumbs/a-para.jpg", created.Thumbnail)
	require.NotNil(t, created.ExpiryDate)
	assert.Equal(t, "2027-06-30", created.ExpiryDate.Format(time.DateOnly))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestProductService_CreateValidation(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	cases := map[string]func(in *model.ProductInput){
		"missing name":   func(in *model.ProductInput) { in.MedicineName = nil },
		"blank name":     func(in *model.ProductInput) { in.MedicineName = strPtr("   ") },
		"missing price":  func(in *model.ProductInput) { in.Price = nil },
		"text price":     func(in *model.ProductInput) { in.Price = strPtr("cheap") },
		"negative price": func(in *model.ProductInput) { in.Price = strPtr("-1") },
		"nan price":      func(in *model.ProductInput) { in.Price = strPtr("NaN") },
		"huge price":     func(in *model.ProductInput) { in.Price = strPtr("1e15") },
		"over max price": func(in *model.ProductInput) { in.Price = strPtr("10000000000") },
		"sub-cent price": func(in *model.ProductInput) { in.Price = strPtr("10.005") },
		"bad expiry":     func(in *model.ProductInput) { in.ExpiryDate = strPtr("30/06/2027") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := paracetamolInput()
			mutate(&input)
			_, err := svc.Create(ctx, input, "admin-1")
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	products, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductService_PriceBounds(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	for raw, want := range map[string]float64{
		"9999999999.99": 9999999999.99,
		"0.1":           0.1,
		"12.30":         12.3,
		"1e2":           100,
	} {
		input := paracetamolInput()
		input.Price = strPtr(raw)
		created, err := svc.Create(ctx, input, "admin-1")
		require.NoError(t, err, raw)
		assert.Equal(t, want, created.Price, raw)
	}

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)
	_, _, err = svc.Update(ctx, created.ID, model.ProductInput{Price: strPtr("1e15")}, "admin-1")
	assert.ErrorIs(t, err, model.ErrValidation)

	unchanged, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.99, unchanged.Price)
}

func TestProductService_ZeroPriceAndRFC3339Expiry(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)

	input := paracetamolInput()
	input.Price = strPtr("0")
	input.ExpiryDate = strPtr("2027-06-30T10:00:00Z")
	created, err := svc.Create(context.Background(), input, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, created.Price)
	assert.Equal(t, "2027-06-30", created.ExpiryDate.Format(time.DateOnly))
}

func TestProductService_ListIsOrderedAndNeverNil(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	products, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"Aspirin", "Ibuprofen", "Cetirizine"}
	for i, name := range names {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		input := paracetamolInput()
		input.MedicineName = strPtr(name)
		_, err := svc.Create(ctx, input, "admin-1")
		require.NoError(t, err)
	}

	products, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	for i, name := range names {
		assert.Equal(t, name, products[i].MedicineName)
	}
}

func TestProductService_PartialUpdate(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)

	before, after, err := svc.Update(ctx, created.ID, model.ProductInput{Price: strPtr("5.49")}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 4.99, before.Price)
	assert.Equal(t, 5.49, after.Price)
	assert.Equal(t, "Paracetamol", after.MedicineName)
	assert.Equal(t, "/uploads/a-para.png", after.Image)
	assert.Equal(t, "Acme Pharma", after.Manufacturer)

	_, after, err = svc.Update(ctx, created.ID, model.ProductInput{
		Image:      &model.StoredImage{Path: "/uploads/b-para.png"},
		ExpiryDate: strPtr(""),
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b-para.png", after.Image)
	assert.Empty(t, after.Thumbnail)
	assert.Nil(t, after.ExpiryDate)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, after, got)
}

func TestProductService_InvalidUpdateLeavesRecordUnchanged(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)

	_, _, err = svc.Update(ctx, created.ID, model.ProductInput{
		Description:  strPtr("changed"),
		MedicineName: strPtr(""),
	}, "admin-1")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, _, err = svc.Update(ctx, created.ID, model.ProductInput{Price: strPtr("-3")}, "admin-1")
	assert.ErrorIs(t, err, model.ErrValidation)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestProductService_NotFound(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()
	missing := uuid.NewString()

	_, err := svc.Get(ctx, missing)
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, _, err = svc.Update(ctx, missing, model.ProductInput{Price: strPtr("1")}, "admin-1")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = svc.Delete(ctx, "../etc", "admin-1")
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestProductService_DeleteTwice(t *testing.T) {
	svc := NewProductService(repository.NewMemoryProductRepository(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, created.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, removed.ID)
	assert.Equal(t, "/uploads/a-para.png", removed.Image)

	_, err = svc.Delete(ctx, created.ID, "admin-1")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestProductService_PublishesEvents(t *testing.T) {
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := NewProductService(repository.NewMemoryProductRepository(), bus)
	ctx := context.Background()

	created, err := svc.Create(ctx, paracetamolInput(), "admin-1")
	require.NoError(t, err)
	_, _, err = svc.Update(ctx, created.ID, model.ProductInput{Price: strPtr("6")}, "admin-1")
	require.NoError(t, err)
	_, err = svc.Delete(ctx, created.ID, "admin-1")
	require.NoError(t, err)

	want := []event.Type{event.TypeProductCreated, event.TypeProductUpdated, event.TypeProductDeleted}
	for _, typ := range want {
		select {
		case e := <-events:
			assert.Equal(t, typ, e.Type)
			assert.Equal(t, created.ID, e.Subject)
			assert.Equal(t, "admin-1", e.ActorID)
		case <-time.After(time.Second):
			t.Fatalf("event %s not published", typ)
		}
	}
}
