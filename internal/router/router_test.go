package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeassess/sessiond/internal/config"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/handler"
	"github.com/codeassess/sessiond/internal/service"
	"github.com/codeassess/sessiond/internal/validator"
)

func testRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:      "test",
		SyncInterval: 15 * time.Second,
	}
	bus := events.NewBus(zerolog.Nop())
	t.Cleanup(func() { bus.Close() })

	manager := service.NewSessionManager(cfg, bus, service.NewMemoryWorkspaceStore(), nil, zerolog.Nop())
	handlers := &Handlers{
		Session: handler.NewSessionHandler(manager, zerolog.Nop()),
		WS:      handler.NewWSHandler(manager, bus, zerolog.Nop(), nil),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, service.SessionClaims{
		StudentID: "student-1",
		ExamID:    "exam-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	return SetupRouter(service.NewTokenService("secret"), handlers, cfg), raw
}

func postSignal(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/signals",
		strings.NewReader(`{"type":"visibility_hidden"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.7:51234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionRoutesRequireJWT(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignalsRouteIsRateLimited(t *testing.T) {
	r, token := testRouter(t)

	// Drain the per-IP allowance; none of these may be throttled.
	for i := 0; i < 120; i++ {
		code := postSignal(r, token)
		require.NotEqual(t, http.StatusTooManyRequests, code, "request %d throttled early", i)
	}

	assert.Equal(t, http.StatusTooManyRequests, postSignal(r, token))
}
