package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		write  func(*gin.Context)
		status int
		body   string
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, `{"success":true,"data":{"a":1}}`},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, `{"success":false,"error":"nope"}`},
		{"not found", func(c *gin.Context) { NotFound(c, "gone") }, http.StatusNotFound, `{"success":false,"error":"gone"}`},
		{"too large", func(c *gin.Context) { TooLarge(c, "big") }, http.StatusRequestEntityTooLarge, `{"success":false,"error":"big"}`},
		{"internal", func(c *gin.Context) { Internal(c, "oops") }, http.StatusInternalServerError, `{"success":false,"error":"oops"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
