package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hirevoice/interview/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type mockRequest struct {
	Value string `json:"value"`
}

func (m *mockRequest) Validate() error {
	switch m.Value {
	case "error_response":
		return &models.ErrorResponse{Code: "invalid", Message: "invalid"}
	case "generic_error":
		return errors.New("failed")
	default:
		return nil
	}
}

func TestValidateRequestSuccess(t *testing.T) {
	called := false
	handler := ValidateRequest[*mockRequest]()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		req := GetValidatedRequest[*mockRequest](r)
		if req.Value != "ok" {
			t.Fatalf("expected value ok, got %s", req.Value)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"value":"ok"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestValidateRequestEmptyBody(t *testing.T) {
	called := false
	handler := ValidateRequest[*mockRequest]()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/test", nil))
	if !called {
		t.Fatal("expected empty body to reach the handler")
	}
}

func TestValidateRequestRejects(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{`,
		"error response": `{"value":"error_response"}`,
		"generic error":  `{"value":"generic_error"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			handler := ValidateRequest[*mockRequest]()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler should not be called")
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

const secret = "test-secret"

func TestVerifyToken(t *testing.T) {
	t.Run("malformed header", func(t *testing.T) {
		if _, err := VerifyToken("Token abc", secret); err != ErrMissingAuthHeader {
			t.Fatalf("expected ErrMissingAuthHeader, got %v", err)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		signed, err := IssueToken("other-secret", "user", models.RoleCandidate, time.Hour)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		if _, err := VerifyToken("Bearer "+signed, secret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		signed, err := IssueToken(secret, "user", models.RoleCandidate, -time.Minute)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		if _, err := VerifyToken("Bearer "+signed, secret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "recruiter"})
		signed, err := token.SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		if _, err := VerifyToken("Bearer "+signed, secret); err != ErrInvalidClaims {
			t.Fatalf("expected ErrInvalidClaims, got %v", err)
		}
	})

	t.Run("recruiter", func(t *testing.T) {
		signed, err := IssueToken(secret, "rec-1", models.RoleRecruiter, time.Hour)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		viewer, err := VerifyToken("Bearer "+signed, secret)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if viewer.UserID != "rec-1" || !viewer.IsRecruiter() {
			t.Fatalf("unexpected viewer %+v", viewer)
		}
	})

	t.Run("unknown role is a candidate", func(t *testing.T) {
		signed, err := IssueToken(secret, "u-1", models.Role("admin"), time.Hour)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		viewer, err := VerifyToken("Bearer "+signed, secret)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if viewer.Role != models.RoleCandidate {
			t.Fatalf("expected candidate role, got %s", viewer.Role)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	var seen models.Viewer
	handler := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ViewerFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !seen.IsAnonymous() {
		t.Fatalf("expected anonymous pass-through, got %d %+v", rec.Code, seen)
	}

	signed, _ := IssueToken(secret, "cand-1", models.RoleCandidate, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen.UserID != "cand-1" {
		t.Fatalf("expected cand-1, got %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRecruiter(t *testing.T) {
	handler := RequireRecruiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		viewer models.Viewer
		status int
	}{
		{"anonymous", models.Viewer{}, http.StatusUnauthorized},
		{"candidate", models.Viewer{UserID: "c", Role: models.RoleCandidate}, http.StatusForbidden},
		{"recruiter", models.Viewer{UserID: "r", Role: models.RoleRecruiter}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithViewer(req.Context(), tc.viewer))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
