package callable

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingSubject = errors.New("callable: token subject is required")
	errMalformedAuth  = errors.New("callable: authorization header must use the Bearer scheme")
)

// Claims is the identity token payload. Subject carries the caller uid.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 identity tokens and, when configured, their
// issuer and audience.
type TokenVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

func NewTokenVerifier(secret string, issuer string, audience string) (*TokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("callable: jwt secret is required")
	}
	return &TokenVerifier{
		Secret:   []byte(secret),
		Issuer:   strings.TrimSpace(issuer),
		Audience: strings.TrimSpace(audience),
	}, nil
}

func (v *TokenVerifier) Verify(raw string) (core.Caller, error) {
	if v == nil || len(v.Secret) == 0 {
		return core.Caller{}, fmt.Errorf("callable: token verifier is not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("callable: unexpected signing method %v", token.Header["alg"])
		}
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return core.Caller{}, err
	}
	if !token.Valid {
		return core.Caller{}, fmt.Errorf("callable: token is not valid")
	}
	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return core.Caller{}, errMissingSubject
	}
	return core.Caller{UID: uid, DisplayName: strings.TrimSpace(claims.Name)}, nil
}

// Issue mints a token for uid. The binary uses it for local development.
func (v *TokenVerifier) Issue(uid string, name string, ttl time.Duration) (string, error) {
	if v == nil || len(v.Secret) == 0 {
		return "", fmt.Errorf("callable: token verifier is not configured")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", errMissingSubject
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	claims := Claims{
		Name: strings.TrimSpace(name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  uid,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if v.Issuer != "" {
		claims.Issuer = v.Issuer
	}
	if v.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// callerFromRequest returns a zero caller when the request has no
// Authorization header. A header that is present but fails verification is
// an error.
func callerFromRequest(r *http.Request, verifier *TokenVerifier) (core.Caller, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return core.Caller{}, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return core.Caller{}, invalidTokenError(errMalformedAuth)
	}
	caller, err := verifier.Verify(token)
	if err != nil {
		return core.Caller{}, invalidTokenError(err)
	}
	return caller, nil
}
