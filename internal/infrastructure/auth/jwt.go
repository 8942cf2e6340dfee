// Package auth validates the bearer tokens issued by the identity provider
// and turns them into the actor the core services act for.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrInvalidRole      = errors.New("invalid role in claims")
	ErrMintDisabled     = errors.New("token minting is disabled")
)

// Claims are the bearer token claims
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Actor converts validated claims into the domain actor
func (c *Claims) Actor() (identity.Actor, error) {
	if c.UserID == "" {
		return identity.Actor{}, ErrMissingUserID
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return identity.Actor{}, ErrInvalidClaims
	}
	role := identity.Role(c.Role)
	// system is reserved for background jobs and never arrives over HTTP
	if !role.IsValid() || role == identity.RoleSystem {
		return identity.Actor{}, ErrInvalidRole
	}
	actor := identity.Actor{UserID: userID, Role: role}
	if c.ProfileID != "" {
		profileID, err := uuid.Parse(c.ProfileID)
		if err != nil {
			return identity.Actor{}, ErrInvalidClaims
		}
		actor.ProfileID = profileID
	}
	return actor, nil
}

// JWTService validates HS256 tokens. Mint exists for local development only.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	devMint  bool
	devTTL   time.Duration
	now      func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		devMint:  cfg.DevMint,
		devTTL:   cfg.DevTTL,
		now:      time.Now,
	}
}

// Validate parses a token and returns the actor it authenticates
func (s *JWTService) Validate(tokenString string) (identity.Actor, *Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return identity.Actor{}, nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return identity.Actor{}, nil, ErrTokenNotYetValid
		default:
			return identity.Actor{}, nil, ErrInvalidToken
		}
	}
	if !token.Valid {
		return identity.Actor{}, nil, ErrInvalidClaims
	}

	actor, err := claims.Actor()
	if err != nil {
		return identity.Actor{}, nil, err
	}
	return actor, claims, nil
}

// Mint signs a token for actor. It refuses unless jwt.dev_mint is set,
// which config validation forbids in production.
func (s *JWTService) Mint(actor identity.Actor) (string, time.Time, error) {
	if !s.devMint {
		return "", time.Time{}, ErrMintDisabled
	}
	if actor.UserID == uuid.Nil {
		return "", time.Time{}, ErrMissingUserID
	}
	if !actor.Role.IsValid() || actor.Role == identity.RoleSystem {
		return "", time.Time{}, ErrInvalidRole
	}

	now := s.now()
	expiresAt := now.Add(s.devTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   actor.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: actor.UserID.String(),
		Role:   actor.Role.String(),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	if actor.ProfileID != uuid.Nil {
		claims.ProfileID = actor.ProfileID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
