package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrMissingKey   = errors.New("missing signing key")
)

// DefaultBearerIssuer is the iss claim of emulator-minted bearer tokens.
const DefaultBearerIssuer = "https://localhost/swa-emulator"

// BearerClaims carries the client principal into proxied API calls.
type BearerClaims struct {
	jwt.RegisteredClaims
	IdentityProvider string   `json:"idp,omitempty"`
	UserDetails      string   `json:"name,omitempty"`
	Roles            []string `json:"roles,omitempty"`
}

// BearerMinter issues HS256 tokens for the synthesized Authorization header.
// The tokens are for local backends only; nothing outside the emulator trusts them.
type BearerMinter struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewBearerMinter creates a minter signing with key.
func NewBearerMinter(key []byte, issuer string, ttl time.Duration) (*BearerMinter, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	if issuer == "" {
		issuer = DefaultBearerIssuer
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BearerMinter{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Mint signs a token for the given principal fields.
func (m *BearerMinter) Mint(provider, userID, userDetails string, roles []string) (string, error) {
	now := m.now()
	claims := &BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		IdentityProvider: provider,
		UserDetails:      userDetails,
		Roles:            roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify parses a token minted by this minter.
func (m *BearerMinter) Verify(tokenString string) (*BearerClaims, error) {
	claims := &BearerClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
