package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser installs user as the authenticated caller.
func asUser(id uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CurrentUserKey, &models.User{ID: id, Role: role, IsActive: true})
		c.Next()
	}
}

// do sends a request through r and decodes the JSON body.
func do(t *testing.T, r http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
