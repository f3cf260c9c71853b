package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-pharmacy-catalog/internal/event"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

// maxPrice is the largest value the products.price NUMERIC(12, 2) column holds.
const maxPrice = 9999999999.99

// ProductStore persists products. Update runs mutate on the current record
// inside the store's atomic section and returns the record as it was before.
type ProductStore interface {
	Create(ctx context.Context, p model.Product) error
	Get(ctx context.Context, id string) (model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, id string, mutate func(*model.Product) error) (model.Product, error)
	Delete(ctx context.Context, id string) (model.Product, error)
}

type ProductService struct {
	products ProductStore
	bus      event.Bus
	now      func() time.Time
}

func NewProductService(products ProductStore, bus event.Bus) *ProductService {
	return &ProductService{products: products, bus: bus, now: time.Now}
}

func (s *ProductService) Create(ctx context.Context, input model.ProductInput, actorID string) (model.Product, error) {
	if input.MedicineName == nil {
		return model.Product{}, validationError("medicineName is required", "medicineName")
	}
	if input.Price == nil {
		return model.Product{}, validationError("price is required", "price")
	}

	now := s.now().UTC()
	product := model.Product{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyInput(&product, input); err != nil {
		return model.Product{}, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return model.Product{}, err
	}

	slog.Info("product created", "product_id", product.ID, "actor", actorID)
	s.publish(event.TypeProductCreated, product.ID, product, actorID)
	return product, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (model.Product, error) {
	if !validProductID(id) {
		return model.Product{}, productNotFound(id)
	}

	product, err := s.products.Get(ctx, id)
	if errors.Is(err, model.ErrProductNotFound) {
		return model.Product{}, productNotFound(id)
	}
	return product, err
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// Update applies only the supplied fields. It returns the record before and
// after the change so the caller can clean up a replaced image.
func (s *ProductService) Update(ctx context.Context, id string, input model.ProductInput, actorID string) (model.Product, model.Product, error) {
	if !validProductID(id) {
		return model.Product{}, model.Product{}, productNotFound(id)
	}

	var after model.Product
	before, err := s.products.Update(ctx, id, func(p *model.Product) error {
		if err := applyInput(p, input); err != nil {
			return err
		}
		p.UpdatedAt = s.now().UTC()
		after = *p
		return nil
	})
	if errors.Is(err, model.ErrProductNotFound) {
		return model.Product{}, model.Product{}, productNotFound(id)
	}
	if err != nil {
		return model.Product{}, model.Product{}, err
	}

	slog.Info("product updated", "product_id", id, "actor", actorID)
	s.publish(event.TypeProductUpdated, id, after, actorID)
	return before, after, nil
}

// Delete removes the product permanently and returns the removed record.
func (s *ProductService) Delete(ctx context.Context, id string, actorID string) (model.Product, error) {
	if !validProductID(id) {
		return model.Product{}, productNotFound(id)
	}

	removed, err := s.products.Delete(ctx, id)
	if errors.Is(err, model.ErrProductNotFound) {
		return model.Product{}, productNotFound(id)
	}
	if err != nil {
		return model.Product{}, err
	}

	slog.Info("product deleted", "product_id", id, "actor", actorID)
	s.publish(event.TypeProductDeleted, id, map[string]string{"id": id}, actorID)
	return removed, nil
}

func (s *ProductService) publish(typ event.Type, subject string, payload any, actorID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(typ, subject, payload, actorID))
}

func applyInput(p *model.Product, input model.ProductInput) error {
	if input.MedicineName != nil {
		name := strings.TrimSpace(*input.MedicineName)
		if name == "" {
			return validationError("medicineName cannot be empty", "medicineName")
		}
		p.MedicineName = name
	}

	if input.Price != nil {
		price, err := parsePrice(*input.Price)
		if err != nil {
			return err
		}
		p.Price = price
	}

	if input.ExpiryDate != nil {
		expiry, err := parseExpiryDate(*input.ExpiryDate)
		if err != nil {
			return err
		}
		p.ExpiryDate = expiry
	}

	setText(&p.Description, input.Description)
	setText(&p.DosageForm, input.DosageForm)
	setText(&p.Uses, input.Uses)
	setText(&p.Manufacturer, input.Manufacturer)
	setText(&p.DrugNumber, input.DrugNumber)

	if input.Image != nil {
		p.Image = input.Image.Path
		p.Thumbnail = input.Image.Thumbnail
	}

	return nil
}

func setText(field *string, value *string) {
	if value != nil {
		*field = strings.TrimSpace(*value)
	}
}

func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, validationError("price must be a number", "price")
	}
	if price < 0 {
		return 0, validationError("price must be greater than or equal to 0", "price")
	}
	if price > maxPrice {
		return 0, validationError("price must not exceed 9999999999.99", "price")
	}
	shortest := strconv.FormatFloat(price, 'f', -1, 64)
	if dot := strings.IndexByte(shortest, '.'); dot >= 0 && len(shortest)-dot-1 > 2 {
		return 0, validationError("price must have at most 2 decimal places", "price")
	}
	return price, nil
}

// parseExpiryDate accepts a calendar date or an RFC 3339 timestamp. An empty
// value clears the date.
func parseExpiryDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, validationError("expiryDate must be YYYY-MM-DD or RFC 3339", "expiryDate")
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day, nil
}

func validProductID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func productNotFound(id string) error {
	return apierror.Wrap(model.ErrProductNotFound, "NOT_FOUND", "Product not found", id, http.StatusNotFound)
}
