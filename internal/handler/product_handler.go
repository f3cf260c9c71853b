package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

const (
	imageField    = "image"
	maxFieldBytes = 64 << 10
)

type productService interface {
	Create(ctx context.Context, input model.ProductInput, actorID string) (model.Product, error)
	Get(ctx context.Context, id string) (model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, id string, input model.ProductInput, actorID string) (model.Product, model.Product, error)
	Delete(ctx context.Context, id string, actorID string) (model.Product, error)
}

type imageStore interface {
	Save(filename string, content io.Reader) (model.StoredImage, error)
	RemoveStored(imagePath string, thumbnailPath string)
}

type ProductHandler struct {
	products      productService
	images        imageStore
	maxUploadSize int64
}

func NewProductHandler(products productService, images imageStore, maxUploadSize int64) *ProductHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 5 << 20
	}
	return &ProductHandler{products: products, images: images, maxUploadSize: maxUploadSize}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Add(w http.ResponseWriter, r *http.Request) {
	input, err := h.readInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	product, err := h.products.Create(r.Context(), input, actorID(r))
	if err != nil {
		h.discardUpload(input)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MessageResponse{Message: "Product added successfully", ID: product.ID})
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, err := h.readInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	before, after, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), input, actorID(r))
	if err != nil {
		h.discardUpload(input)
		writeError(w, err)
		return
	}

	if input.Image != nil && before.Image != after.Image {
		h.images.RemoveStored(before.Image, before.Thumbnail)
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Product updated successfully"})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.products.Delete(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.images.RemoveStored(removed.Image, removed.Thumbnail)
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Product deleted successfully"})
}

// readInput accepts multipart/form-data (the browser form, with an optional
// image part) or a JSON object with the same field names.
func (h *ProductHandler) readInput(w http.ResponseWriter, r *http.Request) (model.ProductInput, error) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return model.ProductInput{}, apierror.BadRequest("Content-Type must be multipart/form-data or application/json", "")
	}

	switch mediaType {
	case "multipart/form-data":
		reader, err := r.MultipartReader()
		if err != nil {
			return model.ProductInput{}, apierror.BadRequest("invalid multipart body", "")
		}
		input, err := h.readMultipart(reader)
		if err != nil {
			h.discardUpload(input)
			return model.ProductInput{}, err
		}
		return input, nil
	case "application/json":
		return readJSONInput(r.Body)
	default:
		return model.ProductInput{}, apierror.BadRequest("Content-Type must be multipart/form-data or application/json", mediaType)
	}
}

// readMultipart may return a partially filled input together with an error;
// its Image, when set, is already on disk.
func (h *ProductHandler) readMultipart(reader *multipart.Reader) (model.ProductInput, error) {
	var input model.ProductInput

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return input, nil
		}
		if err != nil {
			if isPayloadTooLarge(err) {
				return input, err
			}
			return input, apierror.BadRequest("invalid multipart stream", err.Error())
		}

		if part.FormName() == imageField && part.FileName() != "" {
			if input.Image != nil {
				_ = part.Close()
				return input, apierror.BadRequest("only one image may be uploaded", imageField)
			}

			stored, saveErr := h.images.Save(part.FileName(), part)
			_ = part.Close()
			if saveErr != nil {
				return input, saveErr
			}
			input.Image = &stored
			continue
		}

		value, readErr := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		_ = part.Close()
		if readErr != nil {
			if isPayloadTooLarge(readErr) {
				return input, readErr
			}
			return input, apierror.BadRequest("invalid multipart field", part.FormName())
		}
		if len(value) > maxFieldBytes {
			return input, apierror.BadRequest("form field is too large", part.FormName())
		}

		setField(&input, part.FormName(), string(value))
	}
}

func readJSONInput(body io.Reader) (model.ProductInput, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if isPayloadTooLarge(err) {
			return model.ProductInput{}, err
		}
		return model.ProductInput{}, apierror.BadRequest("invalid JSON body", "")
	}

	var input model.ProductInput
	for name, value := range raw {
		text := strings.TrimSpace(string(value))
		if text == "null" {
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			text = s
		}
		setField(&input, name, text)
	}
	return input, nil
}

// setField records a supplied form field. Unknown names are ignored.
func setField(input *model.ProductInput, name string, value string) {
	target := fieldTarget(input, name)
	if target != nil {
		*target = &value
	}
}

func fieldTarget(input *model.ProductInput, name string) **string {
	switch name {
	case "medicineName":
		return &input.MedicineName
	case "description":
		return &input.Description
	case "price":
		return &input.Price
	case "dosageForm":
		return &input.DosageForm
	case "uses":
		return &input.Uses
	case "manufacturer":
		return &input.Manufacturer
	case "expiryDate":
		return &input.ExpiryDate
	case "drugNumber":
		return &input.DrugNumber
	default:
		return nil
	}
}

func (h *ProductHandler) discardUpload(input model.ProductInput) {
	if input.Image != nil {
		h.images.RemoveStored(input.Image.Path, input.Image.Thumbnail)
	}
}

func actorID(r *http.Request) string {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}
