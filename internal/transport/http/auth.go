package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hazeclub/drops-api/internal/domain"
)

// Identity carries the authenticated caller's claims for one request.
type Identity struct {
	UserID string
	VIP    bool
	Admin  bool
}

type identityKey struct{}

// Authenticate validates an optional Bearer access token and stores the
// caller's identity in the request context. Requests without an
// Authorization header pass through anonymously; a malformed or badly
// signed token is rejected outright.
func Authenticate(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, domain.ErrUnauthenticated
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}

		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}

		id := Identity{UserID: sub}
		if vip, ok := claims["vip"].(bool); ok {
			id.VIP = vip
		}
		if role, ok := claims["role"].(string); ok {
			id.Admin = role == "admin"
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey{}).(Identity)
	return id, ok
}

// requireIdentity writes a 401 response when the request is anonymous.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
		return Identity{}, false
	}
	return id, true
}

// requireAdmin writes a 401 or 403 response unless the caller is an admin.
func requireAdmin(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return Identity{}, false
	}
	if !id.Admin {
		writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
		return Identity{}, false
	}
	return id, true
}

// WithIdentity returns a request context carrying the given identity.
// Exported for handler tests and internal tooling.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}
