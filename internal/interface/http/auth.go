package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY TOKENS
// ══════════════════════════════════════════════════════════════════════════════

// Claims is the payload of an identity token.
type Claims struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	AgencyID string `json:"agency_id"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 identity tokens.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	onFailure func()
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithIssuer sets the expected and issued "iss" claim.
func WithIssuer(issuer string) AuthOption {
	return func(a *Authenticator) { a.issuer = issuer }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(a *Authenticator) { a.ttl = ttl }
}

// WithAuthClock overrides the time source.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) { a.now = now }
}

// WithFailureHook is called for every rejected token (metrics).
func WithFailureHook(fn func()) AuthOption {
	return func(a *Authenticator) { a.onFailure = fn }
}

// NewAuthenticator creates an authenticator for the given signing secret.
func NewAuthenticator(secret string, opts ...AuthOption) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: signing secret must be at least 16 bytes")
	}
	a := &Authenticator{
		secret: []byte(secret),
		issuer: "agency-crm",
		ttl:    12 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue signs a token for the given user.
func (a *Authenticator) Issue(user agency.User) (string, error) {
	if _, err := agency.NewUser(user.ID, user.Name, user.Role, user.AgencyID); err != nil {
		return "", err
	}
	now := a.now()
	claims := Claims{
		Name:     user.Name,
		Role:     string(user.Role),
		AgencyID: user.AgencyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token and returns the identity it carries.
func (a *Authenticator) Verify(tokenString string) (agency.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return agency.User{}, shared.WrapError("auth", "Verify", shared.ErrUnauthorized, "invalid identity token", err)
	}

	user, err := agency.NewUser(claims.Subject, claims.Name, agency.Role(claims.Role), shared.AgencyID(claims.AgencyID))
	if err != nil {
		return agency.User{}, shared.WrapError("auth", "Verify", shared.ErrUnauthorized, "token carries an invalid identity", err)
	}
	return user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requireIdentity rejects requests without a valid bearer token and puts the
// identity into the request context.
func (s *Server) requireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.deps.Auth.failed()
			writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "Authorization header with a Bearer token is required", nil)
			return
		}

		user, err := s.deps.Auth.Verify(token)
		if err != nil {
			s.deps.Auth.failed()
			writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "The identity token is invalid or expired", nil)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUser, user)
		next(w, r.WithContext(ctx))
	}
}

func (a *Authenticator) failed() {
	if a.onFailure != nil {
		a.onFailure()
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// userFrom returns the identity placed by requireIdentity.
func userFrom(r *http.Request) agency.User {
	user, _ := r.Context().Value(contextKeyUser).(agency.User)
	return user
}

// String implements fmt.Stringer for log output without the secret.
func (a *Authenticator) String() string {
	return fmt.Sprintf("Authenticator{issuer=%s, ttl=%s}", a.issuer, a.ttl)
}
