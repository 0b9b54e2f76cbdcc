package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signTestToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedID     Identity
		expectIdentity bool
	}{
		{
			name:           "anonymous passthrough",
			header:         "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid token",
			header:         "Bearer " + mustToken(t, jwt.MapClaims{"sub": "user-1", "vip": true, "role": "customer", "exp": exp}),
			expectedStatus: http.StatusOK,
			expectedID:     Identity{UserID: "user-1", VIP: true},
			expectIdentity: true,
		},
		{
			name:           "admin role",
			header:         "Bearer " + mustToken(t, jwt.MapClaims{"sub": "user-2", "role": "admin", "exp": exp}),
			expectedStatus: http.StatusOK,
			expectedID:     Identity{UserID: "user-2", Admin: true},
			expectIdentity: true,
		},
		{
			name:           "missing subject",
			header:         "Bearer " + mustToken(t, jwt.MapClaims{"vip": true, "exp": exp}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			header:         "Bearer " + mustToken(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "not a bearer header",
			header:         "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			header:         "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got Identity
			var gotIdentity bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, gotIdentity = identityFrom(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/drops/d1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticate(testSecret, next).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if gotIdentity != tt.expectIdentity {
				t.Fatalf("expected identity presence %v, got %v", tt.expectIdentity, gotIdentity)
			}
			if tt.expectIdentity && got != tt.expectedID {
				t.Fatalf("expected identity %+v, got %+v", tt.expectedID, got)
			}
		})
	}
}

func TestAuthenticate_WrongSecretRejected(t *testing.T) {
	t.Parallel()

	token := mustToken(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/drops/d1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Authenticate([]byte("a-different-secret"), next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func mustToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	return signTestToken(t, testSecret, claims)
}
