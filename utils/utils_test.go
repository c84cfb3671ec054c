package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTokenFromHandshake(t *testing.T) {
	tests := []struct {
		name    string
		auth    any
		want    string
		wantErr bool
	}{
		{"bearer", map[string]interface{}{"authorization": "Bearer abc"}, "abc", false},
		{"bare token field", map[string]interface{}{"token": "xyz"}, "xyz", false},
		{"capitalised", map[string]interface{}{"Authorization": "Bearer k"}, "k", false},
		{"empty bearer", map[string]interface{}{"authorization": "Bearer "}, "", true},
		{"wrong type", map[string]interface{}{"authorization": 12}, "", true},
		{"no auth", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenFromHandshake(tt.auth)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingAuth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := zaptest.NewLogger(t)
	r.Use(Logger(logger), ErrorHandler(logger))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/err", func(c *gin.Context) { _ = c.Error(assert.AnError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
