package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ETagMiddleware())
	router.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	router.GET("/api/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})
	router.POST("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	router.GET("/other", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return router
}

func TestETag_SetOnAPIGet(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/api/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), "pong")
}

func TestETag_NotModified(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/api/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req, _ = http.NewRequest("GET", "/api/ping", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestETag_StableAcrossIdenticalResponses(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/api/ping", nil)
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, req)

	req, _ = http.NewRequest("GET", "/api/ping", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)

	assert.Equal(t, w1.Header().Get("ETag"), w2.Header().Get("ETag"))
}

func TestETag_SkipsErrorsAndNonGet(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/api/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))

	req, _ = http.NewRequest("POST", "/api/ping", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
}

func TestETag_SkipsNonAPIPaths(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/other", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
}
