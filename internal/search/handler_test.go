package search

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouterWith(t *testing.T, planner Planner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r, _ := newTestResolver(t, planner)
	router := gin.New()
	NewHandler(r, zap.NewNop()).RegisterRoutes(router.Group("/search"))
	return router
}

func TestSearchEndpoint_EmptyQueryRejected(t *testing.T) {
	router := newTestRouterWith(t, &fakePlanner{})

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query": "  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint_PlannerFailureStillOK(t *testing.T) {
	router := newTestRouterWith(t, &fakePlanner{err: errors.New("model unavailable")})

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query": "kalidasa"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, 1, resp.Count)
}

func TestManualEndpoint(t *testing.T) {
	router := newTestRouterWith(t, &fakePlanner{})

	req := httptest.NewRequest(http.MethodGet, "/search/manual?author=kali&operator=or", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ManualResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "or", resp.Filters["operator"])
}
