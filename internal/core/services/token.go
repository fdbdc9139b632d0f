package services

import (
	"errors"
	"time"

	"folio/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the verified identity carried by a session token.
type Claims struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   domain.Role
}

type TokenService struct {
	secretKey  []byte
	issuer     string
	visitorTTL time.Duration
	adminTTL   time.Duration
}

func NewTokenService(secret string, visitorTTL, adminTTL time.Duration) *TokenService {
	return &TokenService{
		secretKey:  []byte(secret),
		issuer:     "folio-backend",
		visitorTTL: visitorTTL,
		adminTTL:   adminTTL,
	}
}

// Generate issues a session token for the user. Admin tokens live 24h,
// visitor tokens 7d (both configurable).
func (s *TokenService) Generate(u *domain.User) (string, error) {
	ttl := s.visitorTTL
	if u.Role == domain.RoleAdmin {
		ttl = s.adminTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.ID.String(),
		"email": u.Email,
		"name":  u.Name,
		"role":  string(u.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"iss":   s.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Validate parses the JWT string and returns the embedded identity.
// An expired token is reported distinctly from a malformed or forged one.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Ensure signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)
	role, _ := mapClaims["role"].(string)
	if role != string(domain.RoleVisitor) && role != string(domain.RoleAdmin) {
		return nil, domain.ErrInvalidToken
	}
	return &Claims{
		UserID: id,
		Email:  email,
		Name:   name,
		Role:   domain.Role(role),
	}, nil
}
