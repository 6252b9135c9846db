package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const shareIssuer = "field-service"

var (
	ErrInvalidToken = errors.New("invalid share token")
	ErrNoSecret     = errors.New("share secret is not configured")
)

// ShareClaims grant read-only access to a single field.
type ShareClaims struct {
	FieldID string `json:"fid"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an HS256 token for fieldID and returns it with its expiry.
func (i *Issuer) Issue(fieldID string, id string) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}

	now := i.now()
	expires := now.Add(i.ttl)
	claims := ShareClaims{
		FieldID: fieldID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    shareIssuer,
			Subject:   fieldID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign share token: %w", err)
	}
	return token, expires, nil
}

type Parser struct {
	secret []byte
	now    func() time.Time
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret), now: time.Now}
}

func (p *Parser) Parse(token string) (*ShareClaims, error) {
	if len(p.secret) == 0 {
		return nil, ErrNoSecret
	}

	claims := &ShareClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(shareIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.FieldID == "" {
		return nil, fmt.Errorf("%w: missing field id", ErrInvalidToken)
	}
	return claims, nil
}
