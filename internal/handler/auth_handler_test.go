package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/model"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, username string, password string, role string) (model.User, error) {
	args := m.Called(ctx, username, password, role)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, username string, password string, role string) (model.IssuedToken, error) {
	args := m.Called(ctx, username, password, role)
	return args.Get(0).(model.IssuedToken), args.Error(1)
}

func TestAuthHandler_Signup(t *testing.T) {
	svc := &mockAuthService{}
	h := NewAuthHandler(svc)
	svc.On("Signup", mock.Anything, "alice", "pw123456", "customer").Return(model.User{Username: "alice", Role: model.RoleCustomer}, nil).Once()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"username":"alice","password":"pw123456","role":"customer"}`))
	h.Signup(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User registered successfully","role":"customer"}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestAuthHandler_SignupDuplicate(t *testing.T) {
	svc := &mockAuthService{}
	h := NewAuthHandler(svc)
	svc.On("Signup", mock.Anything, "alice", "pw123456", "admin").Return(model.User{}, model.ErrDuplicateUsername).Once()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"username":"alice","password":"pw123456","role":"admin"}`))
	h.Signup(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Username already exists","code":"DUPLICATE_USERNAME"}`, rec.Body.String())
}

func TestAuthHandler_MalformedBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"BAD_REQUEST"`)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"`+strings.Repeat("a", maxCredentialBody)+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &mockAuthService{}
	h := NewAuthHandler(svc)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Login", mock.Anything, "alice", "pw123456", "customer").Return(model.IssuedToken{
		Token:     "signed.jwt.value",
		Role:      model.RoleCustomer,
		TokenType: "Bearer",
		ExpiresIn: 3600,
		ExpiresAt: expires,
	}, nil).Once()

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"pw123456","role":"customer"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"signed.jwt.value","role":"customer","tokenType":"Bearer","expiresIn":3600,"expiresAt":"2030-01-01T00:00:00Z"}`, rec.Body.String())
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := &model.AuthClaims{UserID: "u-1", Username: "alice", Role: model.RoleAdmin, ExpiresAt: expires}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec = httptest.NewRecorder()
	h.Me(rec, req.WithContext(middleware.WithClaims(req.Context(), claims)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u-1","username":"alice","role":"admin","expiresAt":"2030-01-01T00:00:00Z"}`, rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, "memory").Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"memory"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(failingChecker{}, "postgres").Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","store":"postgres"}`, rec.Body.String())
}

type failingChecker struct{}

func (failingChecker) Health(context.Context) error { return context.DeadlineExceeded }
