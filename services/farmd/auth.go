package farmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// AdminScope must be present in the scope claim of admin JWTs.
const AdminScope = "farm.admin"

// AuthConfig selects how admin requests are authenticated. Either a static
// bearer token, an HMAC secret for JWTs, or both may be configured.
type AuthConfig struct {
	BearerToken string
	JWTSecret   string
	Issuer      string
	Audience    string
	ClockSkew   time.Duration
}

// Authenticator validates requests to the admin routes.
type Authenticator struct {
	bearerToken string
	secret      []byte
	issuer      string
	audience    string
	skew        time.Duration
}

// NewAuthenticator constructs an Authenticator from cfg.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	token := strings.TrimSpace(cfg.BearerToken)
	secret := strings.TrimSpace(cfg.JWTSecret)
	if token == "" && secret == "" {
		return nil, fmt.Errorf("admin bearer token or jwt secret must be configured")
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Authenticator{
		bearerToken: token,
		secret:      []byte(secret),
		issuer:      strings.TrimSpace(cfg.Issuer),
		audience:    strings.TrimSpace(cfg.Audience),
		skew:        skew,
	}, nil
}

// Middleware enforces authentication for admin handlers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("admin routes disabled"))
			return
		}
		if a.authenticate(r) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
	})
}

func (a *Authenticator) authenticate(r *http.Request) bool {
	if a == nil || r == nil {
		return false
	}
	token := parseBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	if a.bearerToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.bearerToken)) == 1 {
		return true
	}
	if len(a.secret) == 0 {
		return false
	}
	return a.validateJWT(token) == nil
}

func (a *Authenticator) validateJWT(tokenString string) error {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.skew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return errors.New("invalid claims")
	}
	if !hasScope(claims, AdminScope) {
		return errors.New("missing admin scope")
	}
	return nil
}

func hasScope(claims jwt.MapClaims, scope string) bool {
	switch v := claims["scope"].(type) {
	case string:
		for _, s := range strings.Fields(v) {
			if s == scope {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == scope {
				return true
			}
		}
	}
	return false
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
