package service

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and checks the signed bearer tokens. Tokens are not
// stored anywhere: a token stays valid until it expires.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}

	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) Issue(user model.User) (model.IssuedToken, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := tokenClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return model.IssuedToken{}, err
	}

	return model.IssuedToken{
		Token:     signed,
		Role:      user.Role,
		TokenType: "Bearer",
		ExpiresIn: int64(s.ttl.Seconds()),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyHeader checks an Authorization header value of the form
// "Bearer <token>".
func (s *TokenService) VerifyHeader(header string) (*model.AuthClaims, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, missingToken("authorization header is missing")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return nil, invalidToken("authorization scheme must be Bearer")
	}
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return nil, missingToken("bearer token is missing")
	}

	return s.Verify(token)
}

// jwt rejects a token at the exact exp second; the leeway moves that edge and
// the After check below restores "expired only once now is past exp".
const expiryLeeway = time.Second

func (s *TokenService) Verify(tokenString string) (*model.AuthClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, missingToken("bearer token is missing")
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(expiryLeeway),
	)
	if err == nil && claims.ExpiresAt != nil && s.now().After(claims.ExpiresAt.Time) {
		err = jwt.ErrTokenExpired
	}
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, invalidToken("token signature is invalid")
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apierror.Wrap(model.ErrExpiredToken, "EXPIRED_TOKEN", "token has expired", "", http.StatusUnauthorized)
	default:
		return nil, invalidToken("token is malformed or invalid")
	}

	role, ok := model.ParseRole(claims.Role)
	if claims.Subject == "" || !ok {
		return nil, invalidToken("token claims are incomplete")
	}

	out := &model.AuthClaims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	return out, nil
}

// RequireRole passes only claims that carry exactly the required role.
func RequireRole(claims *model.AuthClaims, required model.Role) error {
	if claims == nil {
		return apierror.Wrap(model.ErrUnauthenticated, "UNAUTHENTICATED", "authentication required", "", http.StatusUnauthorized)
	}
	if claims.Role != required {
		return apierror.Wrap(model.ErrForbidden, "FORBIDDEN", "access denied: "+string(required)+"s only", "", http.StatusForbidden)
	}
	return nil
}

func missingToken(message string) error {
	return apierror.Wrap(model.ErrMissingToken, "MISSING_TOKEN", message, "", http.StatusUnauthorized)
}

func invalidToken(message string) error {
	return apierror.Wrap(model.ErrInvalidToken, "INVALID_TOKEN", message, "", http.StatusUnauthorized)
}
