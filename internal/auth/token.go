package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "rising-bsm"

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a request principal.
func (c *Claims) Principal() (Principal, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		UserID: userID,
		Name:   c.Name,
		Email:  c.Email,
		Role:   strings.ToLower(strings.TrimSpace(c.Role)),
	}, nil
}

// Verifier issues and verifies HS256 access tokens. It has no side effects:
// verification is pure over (token, clock, secret).
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			v.issuer = issuer
		}
	}
}

// NewVerifier constructs a Verifier. The secret and a positive TTL are required.
func NewVerifier(secret string, ttl time.Duration, opts ...VerifierOption) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	v := &Verifier{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// TTL returns the configured access token lifetime.
func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// Issue signs an access token for the given user.
func (v *Verifier) Issue(user User) (string, time.Time, error) {
	if user.ID <= 0 {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := v.now().UTC()
	expiresAt := now.Add(v.ttl)
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		Role:  strings.ToLower(strings.TrimSpace(user.Role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the token signature, issuer and expiry and returns the claims.
// An absent token yields ErrUnauthenticated; a structurally broken token or a
// bad signature yields ErrInvalidToken; a well-signed token past its expiry
// yields ErrTokenExpired. A token whose expiry equals the current instant is
// treated as expired.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	},
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	// Inclusive boundary: exp == now is already expired.
	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
