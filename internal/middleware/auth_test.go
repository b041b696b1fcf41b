package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func newProtectedRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		identity := GetIdentity(c)
		c.JSON(200, gin.H{"user_id": identity.UserID, "email": identity.Email})
	})
	return router
}

func TestAuthRequired_NoHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	newProtectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["error"] == "" || body["error"] == nil {
		t.Error("error message should be present")
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := newProtectedRouter()
	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer   ",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	newProtectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken("user-1", "alice@example.com", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newProtectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["user_id"] != "user-1" || body["email"] != "alice@example.com" {
		t.Errorf("unexpected identity: %v", body)
	}
}

func TestAuthRequired_QueryToken(t *testing.T) {
	token, _ := utils.GenerateToken("user-2", "bob@example.com", 1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected?token="+token, nil)
	newProtectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestGetIdentity_Empty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	identity := GetIdentity(c)
	if identity.UserID != "" || identity.Email != "" {
		t.Errorf("expected empty identity, got %+v", identity)
	}

	c.Set(ContextUserID, "user-9")
	if got := GetIdentity(c).UserID; got != "user-9" {
		t.Errorf("UserID = %q, expected %q", got, "user-9")
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		admins []string
		status int
	}{
		{"listed admin", "root@example.com", []string{"root@example.com"}, http.StatusOK},
		{"case insensitive", "Root@Example.com", []string{"root@example.com"}, http.StatusOK},
		{"not listed", "alice@example.com", []string{"root@example.com"}, http.StatusForbidden},
		{"no admins configured", "root@example.com", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				c.Set(ContextEmail, tt.email)
				c.Next()
			})
			router.Use(AdminRequired(tt.admins))
			router.GET("/admin", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/admin", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}
