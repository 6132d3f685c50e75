package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/veloflux/go-session/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Introspection captures the claims the backend embeds in its bearer
// tokens. The 'Active' field reflects the exp claim only - the client
// holds no verification key (HS256 with a server-side secret), so this is
// diagnostic metadata, not an authorization decision.
type Introspection struct {
	Active    bool     `json:"active"`               // False once the exp claim has passed
	Sub       *string  `json:"sub,omitempty"`        // Subject (user ID)
	Exp       *int64   `json:"exp,omitempty"`        // Expiration
	Iat       *int64   `json:"iat,omitempty"`        // Issued at time
	Iss       *string  `json:"iss,omitempty"`        // Issuer
	Aud       []string `json:"aud,omitempty"`        // Audience
	UserID    string   `json:"user_id,omitempty"`    // Backend user ID claim
	Email     string   `json:"email,omitempty"`      // User email claim
	TenantID  string   `json:"tenant_id,omitempty"`  // Home tenant claim
	Role      string   `json:"role,omitempty"`       // Tenant role claim
	FirstName string   `json:"first_name,omitempty"` // Optional name claims
	LastName  string   `json:"last_name,omitempty"`
}

// Introspect extracts claims from a bearer token without verifying its
// signature.
func Introspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, nil
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return &Introspection{Active: false}, errors.Wrap(err, "[Introspect] ParseUnverified")
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("[Introspect] error extracting claims")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	userID, _ := claims["user_id"].(string)
	email, _ := claims["email"].(string)
	tenantID, _ := claims["tenant_id"].(string)
	role, _ := claims["role"].(string)
	firstName, _ := claims["first_name"].(string)
	lastName, _ := claims["last_name"].(string)

	// aud may be a bare string or an array of strings
	var aud []string
	switch v := claims["aud"].(type) {
	case string:
		aud = []string{v}
	case []any:
		aud = utils.ToStringSlice(v)
	}

	iatInt := int64(iat)
	expInt := int64(exp)

	active := true
	if expInt > 0 && NowTimeFunc().Unix() > expInt {
		active = false
	}

	return &Introspection{
		Active:    active,
		Sub:       utils.Ptr(sub),
		Exp:       utils.Ptr(expInt),
		Iat:       utils.Ptr(iatInt),
		Iss:       utils.Ptr(iss),
		Aud:       aud,
		UserID:    userID,
		Email:     email,
		TenantID:  tenantID,
		Role:      role,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

// ExpiresAt returns the token's expiry time, or the zero time when the
// token carries no exp claim or cannot be parsed.
func ExpiresAt(rawToken string) time.Time {
	ti, err := Introspect(rawToken)
	if err != nil || utils.Value(ti.Exp) == 0 {
		return time.Time{}
	}
	return time.Unix(utils.Value(ti.Exp), 0)
}
