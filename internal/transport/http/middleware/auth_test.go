package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/usecase"
)

type stubAuthenticator struct {
	account domain.Account
	err     error
	token   string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (domain.Account, error) {
	s.token = token
	return s.account, s.err
}

func authRouter(t *testing.T, auth Authenticator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", RequireAuth(auth, zaptest.NewLogger(t)), func(c *gin.Context) {
		account, ok := GetAuthenticatedAccount(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		id, _ := GetAuthenticatedAccountID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "email": account.Email, "ctx_account": GetRequestContext(c).AccountID})
	})
	return router
}

func getMe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuthStoresAccount(t *testing.T) {
	auth := &stubAuthenticator{account: domain.Account{ID: "acct-1", Email: "a@u.edu"}}

	rr := getMe(authRouter(t, auth), "Bearer tok-123")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if auth.token != "tok-123" {
		t.Fatalf("expected bearer token to be forwarded, got %q", auth.token)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "acct-1" || body["email"] != "a@u.edu" || body["ctx_account"] != "acct-1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRequireAuthFailures(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		err           error
		wantStatus    int
		wantCode      domain.ErrorKind
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantCode:   domain.KindUnauthorized,
		},
		{
			name:          "wrong scheme",
			authorization: "Basic abc",
			wantStatus:    http.StatusUnauthorized,
			wantCode:      domain.KindUnauthorized,
		},
		{
			name:          "invalid token",
			authorization: "Bearer forged",
			err:           usecase.ErrInvalidToken.Wrap(errors.New("signature is invalid")),
			wantStatus:    http.StatusUnauthorized,
			wantCode:      domain.KindInvalidToken,
		},
		{
			name:          "deleted account",
			authorization: "Bearer stale",
			err:           usecase.ErrAccountNotFound,
			wantStatus:    http.StatusNotFound,
			wantCode:      domain.KindAccountNotFound,
		},
		{
			name:          "store outage",
			authorization: "Bearer ok",
			err:           errors.New("connection refused"),
			wantStatus:    http.StatusInternalServerError,
			wantCode:      domain.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := getMe(authRouter(t, &stubAuthenticator{err: tt.err}), tt.authorization)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != string(tt.wantCode) {
				t.Fatalf("expected code %q, got %q", tt.wantCode, body.Code)
			}
			if body.TraceID == "" {
				t.Fatal("expected trace id in error response")
			}
			if tt.wantCode == domain.KindInternal && body.Error != "internal server error" {
				t.Fatalf("internal failures must not leak details, got %q", body.Error)
			}
		})
	}
}
