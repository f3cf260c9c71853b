package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorResponse{
		Code:  "INTERNAL_ERROR",
		Error: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Error = apiErr.Message
		body.Details = apiErr.Details
	case isPayloadTooLarge(err):
		status = http.StatusRequestEntityTooLarge
		body.Code = "PAYLOAD_TOO_LARGE"
		body.Error = "request body exceeds MAX_UPLOAD_SIZE"
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		body.Code = "VALIDATION_ERROR"
		body.Error = "Invalid input"
	case errors.Is(err, model.ErrDuplicateUsername):
		status = http.StatusBadRequest
		body.Code = "DUPLICATE_USERNAME"
		body.Error = "Username already exists"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusBadRequest
		body.Code = "INVALID_CREDENTIALS"
		body.Error = "Invalid username or password"
	case errors.Is(err, model.ErrMissingToken):
		status = http.StatusUnauthorized
		body.Code = "MISSING_TOKEN"
		body.Error = "Authorization token is missing"
	case errors.Is(err, model.ErrExpiredToken):
		status = http.StatusUnauthorized
		body.Code = "EXPIRED_TOKEN"
		body.Error = "Token has expired"
	case errors.Is(err, model.ErrInvalidToken):
		status = http.StatusUnauthorized
		body.Code = "INVALID_TOKEN"
		body.Error = "Token is invalid"
	case errors.Is(err, model.ErrUnauthenticated):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHENTICATED"
		body.Error = "Authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Error = "Access denied"
	case errors.Is(err, model.ErrProductNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Error = "Product not found"
	case errors.Is(err, model.ErrStore):
		body.Code = "STORE_ERROR"
		body.Error = "Storage is unavailable"
		slog.Error("store failure", "error", err.Error())
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	writeJSON(w, status, body)
}

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
