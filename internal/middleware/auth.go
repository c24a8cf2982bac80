package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hirevoice/interview/internal/models"
	"hirevoice/interview/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

const viewerKey contextKey = "viewer"

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
)

// VerifyToken validates a bearer token signed with secret and returns the
// caller it names.
func VerifyToken(authz, secret string) (models.Viewer, error) {
	if !strings.HasPrefix(authz, "Bearer ") {
		return models.Viewer{}, ErrMissingAuthHeader
	}
	tokenStr := strings.TrimPrefix(authz, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Viewer{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Viewer{}, ErrInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Viewer{}, ErrInvalidClaims
	}

	role := models.RoleCandidate
	if r, ok := claims["role"].(string); ok && models.Role(r) == models.RoleRecruiter {
		role = models.RoleRecruiter
	}
	return models.Viewer{UserID: sub, Role: role}, nil
}

// IssueToken signs an HS256 token for userID with the given role.
func IssueToken(secret, userID string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate resolves the caller from the Authorization header. Requests
// without the header continue as anonymous candidates; a bad token is
// rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}

			viewer, err := VerifyToken(authz, secret)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "invalid_token",
					Message: err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

// RequireRecruiter rejects callers that are not authenticated recruiters.
func RequireRecruiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := ViewerFrom(r.Context())
		if viewer.IsAnonymous() {
			utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
				Code:    "authentication_required",
				Message: ErrMissingAuthHeader.Error(),
			})
			return
		}
		if !viewer.IsRecruiter() {
			utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
				Code:    "recruiter_required",
				Message: "Only recruiters can access this resource",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithViewer(ctx context.Context, viewer models.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, viewer)
}

// ViewerFrom returns the caller stored by Authenticate, or an anonymous
// viewer.
func ViewerFrom(ctx context.Context) models.Viewer {
	viewer, _ := ctx.Value(viewerKey).(models.Viewer)
	return viewer
}
