package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/utils"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop()))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(utils.NewServiceLogger(zap.NewNop(), "test")))
	router.Use(CORSMiddleware(&config.SecurityConfig{AllowedOrigins: []string{"http://localhost:3000"}}))

	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetRequestID(c))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return router
}

func TestRequestIDMiddleware(t *testing.T) {
	router := newEngine()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.Equal(t, http.StatusOK, w.Code)
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	router := newEngine()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	assert.Equal(t, w.Header().Get(RequestIDHeader), body.RequestID)
}

func TestCORSMiddleware(t *testing.T) {
	router := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
