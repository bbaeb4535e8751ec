package webhook

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"nurture_backend/platform/logger"
)

type fakeWebhookConfig struct {
	hash string
}

func (f fakeWebhookConfig) GetWebhookAPIKeyHash() string { return f.hash }

func newAuthTestRouter(t *testing.T, hash string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/inbound", APIKeyAuthMiddleware(fakeWebhookConfig{hash: hash}, logger.New("development")), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	const plainKey = "test-webhook-key"
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword: %v", err)
	}
	hash := string(hashBytes)

	tests := []struct {
		name       string
		hash       string
		apiKey     string
		wantStatus int
	}{
		{"valid key passes", hash, plainKey, http.StatusOK},
		{"wrong key rejected", hash, "wrong-key", http.StatusUnauthorized},
		{"missing key rejected", hash, "", http.StatusUnauthorized},
		{"unconfigured hash returns unavailable", "", plainKey, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthTestRouter(t, tt.hash)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-Api-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
