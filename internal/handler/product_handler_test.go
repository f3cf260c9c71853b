package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

const productID = "0b7c6d6e-5b9e-4c38-9d55-2f1f0e6a7c11"

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) Create(ctx context.Context, input model.ProductInput, actorID string) (model.Product, error) {
	args := m.Called(ctx, input, actorID)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *mockProductService) Get(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *mockProductService) List(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *mockProductService) Update(ctx context.Context, id string, input model.ProductInput, actorID string) (model.Product, model.Product, error) {
	args := m.Called(ctx, id, input, actorID)
	return args.Get(0).(model.Product), args.Get(1).(model.Product), args.Error(2)
}

func (m *mockProductService) Delete(ctx context.Context, id string, actorID string) (model.Product, error) {
	args := m.Called(ctx, id, actorID)
	return args.Get(0).(model.Product), args.Error(1)
}

type fakeImages struct {
	saved   []string
	removed []string
	saveErr error
}

func (f *fakeImages) Save(filename string, content io.Reader) (model.StoredImage, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return model.StoredImage{}, err
	}
	if f.saveErr != nil {
		return model.StoredImage{}, f.saveErr
	}

	f.saved = append(f.saved, filename)
	return model.StoredImage{
		Path:      "/uploads/new-" + filename,
		Thumbnail: "/uploads/thumbs/new.jpg",
		MimeType:  "image/png",
		Size:      int64(len(data)),
	}, nil
}

func (f *fakeImages) RemoveStored(imagePath string, thumbnailPath string) {
	f.removed = append(f.removed, imagePath, thumbnailPath)
}

func newProductRouter(products *mockProductService, images *fakeImages, maxUpload int64) http.Handler {
	h := NewProductHandler(products, images, maxUpload)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &model.AuthClaims{UserID: "admin-1", Username: "pharmacist", Role: model.RoleAdmin}
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	})
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)
	r.Post("/products/add", h.Add)
	r.Put("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, images map[string][]byte) (string, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, content := range images {
		part, err := writer.CreateFormFile("image", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return writer.FormDataContentType(), buf
}

func strPtr(s string) *string { return &s }

func TestProductHandler_AddMultipart(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	products.On("Create", mock.Anything, mock.MatchedBy(func(input model.ProductInput) bool {
		return input.MedicineName != nil && *input.MedicineName == "Paracetamol" &&
			input.Price != nil && *input.Price == "4.99" &&
			input.Image != nil && input.Image.Path == "/uploads/new-para.png"
	}), "admin-1").Return(model.Product{ID: productID}, nil).Once()

	contentType, body := multipartBody(t, map[string]string{
		"medicineName": "Paracetamol",
		"price":        "4.99",
		"unknown":      "ignored",
	}, map[string][]byte{"para.png": []byte("fake image bytes")})

	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Product added successfully","id":"`+productID+`"}`, rec.Body.String())
	assert.Equal(t, []string{"para.png"}, images.saved)
	assert.Empty(t, images.removed)
	products.AssertExpectations(t)
}

func TestProductHandler_AddFailureDiscardsUpload(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	validation := apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", "medicineName is required", "medicineName", http.StatusBadRequest)
	products.On("Create", mock.Anything, mock.Anything, "admin-1").Return(model.Product{}, validation).Once()

	contentType, body := multipartBody(t, map[string]string{"price": "1"}, map[string][]byte{"x.png": []byte("img")})
	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"medicineName is required","code":"VALIDATION_ERROR","details":"medicineName"}`, rec.Body.String())
	assert.Equal(t, []string{"/uploads/new-x.png", "/uploads/thumbs/new.jpg"}, images.removed)
}

func TestProductHandler_AddRejectsSecondImage(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	contentType, body := multipartBody(t, nil, map[string][]byte{"a.png": []byte("a"), "b.png": []byte("b")})
	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, images.saved, 1)
	assert.Len(t, images.removed, 2)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductHandler_AddPayloadTooLarge(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1024)

	contentType, body := multipartBody(t, map[string]string{"medicineName": "Big"}, map[string][]byte{"big.png": bytes.Repeat([]byte("x"), 8<<10)})
	req := httptest.NewRequest(http.MethodPost, "/products/add", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"PAYLOAD_TOO_LARGE"`)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductHandler_AddRejectsUnknownContentType(t *testing.T) {
	router := newProductRouter(&mockProductService{}, &fakeImages{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/products/add", strings.NewReader("medicineName=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"BAD_REQUEST"`)
}

func TestProductHandler_UpdateJSON(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	expected := model.ProductInput{Price: strPtr("5.49"), Description: strPtr("Updated")}
	before := model.Product{ID: productID, Image: "/uploads/old.png", Thumbnail: "/uploads/thumbs/old.jpg"}
	products.On("Update", mock.Anything, productID, expected, "admin-1").Return(before, before, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/products/"+productID, strings.NewReader(`{"price":5.49,"description":"Updated","uses":null}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Product updated successfully"}`, rec.Body.String())
	assert.Empty(t, images.removed)
	products.AssertExpectations(t)
}

func TestProductHandler_UpdateReplacesImage(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	before := model.Product{ID: productID, Image: "/uploads/old.png", Thumbnail: "/uploads/thumbs/old.jpg"}
	after := model.Product{ID: productID, Image: "/uploads/new-fresh.png", Thumbnail: "/uploads/thumbs/new.jpg"}
	products.On("Update", mock.Anything, productID, mock.Anything, "admin-1").Return(before, after, nil).Once()

	contentType, body := multipartBody(t, nil, map[string][]byte{"fresh.png": []byte("img")})
	req := httptest.NewRequest(http.MethodPut, "/products/"+productID, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"/uploads/old.png", "/uploads/thumbs/old.jpg"}, images.removed)
}

func TestProductHandler_GetNotFound(t *testing.T) {
	products := &mockProductService{}
	router := newProductRouter(products, &fakeImages{}, 1<<20)

	notFound := apierror.Wrap(model.ErrProductNotFound, "NOT_FOUND", "Product not found", "missing", http.StatusNotFound)
	products.On("Get", mock.Anything, "missing").Return(model.Product{}, notFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Product not found","code":"NOT_FOUND","details":"missing"}`, rec.Body.String())
}

func TestProductHandler_ListAndDelete(t *testing.T) {
	products := &mockProductService{}
	images := &fakeImages{}
	router := newProductRouter(products, images, 1<<20)

	products.On("List", mock.Anything).Return([]model.Product{{ID: productID, MedicineName: "Paracetamol"}}, nil).Once()
	products.On("Delete", mock.Anything, productID, "admin-1").
		Return(model.Product{ID: productID, Image: "/uploads/a.png", Thumbnail: "/uploads/thumbs/a.jpg"}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Paracetamol", listed[0].MedicineName)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/products/"+productID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Product deleted successfully"}`, rec.Body.String())
	assert.Equal(t, []string{"/uploads/a.png", "/uploads/thumbs/a.jpg"}, images.removed)
	products.AssertExpectations(t)
}
