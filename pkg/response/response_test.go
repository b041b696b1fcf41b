package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/test", nil)
	handler(c)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	return body
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"name": "test"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Code != 0 || resp.Message != "ok" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]string{"id": "abc"})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
}

func TestAnalysis(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Analysis(c, map[string]int{"risk_score": 42})
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body struct {
		Success  bool           `json:"success"`
		Analysis map[string]int `json:"analysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if !body.Success {
		t.Error("success should be true")
	}
	if body.Analysis["risk_score"] != 42 {
		t.Errorf("risk_score = %d, expected 42", body.Analysis["risk_score"])
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(c *gin.Context)
		status int
		msg    string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "invalid input") }, http.StatusBadRequest, "invalid input"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "no token") }, http.StatusUnauthorized, "no token"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "nope") }, http.StatusForbidden, "nope"},
		{"not found", func(c *gin.Context) { NotFound(c, "missing") }, http.StatusNotFound, "missing"},
		{"server error", func(c *gin.Context) { ServerError(c, "boom") }, http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(tt.fn)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			body := parseError(t, w)
			if body.Error != tt.msg {
				t.Errorf("error = %q, expected %q", body.Error, tt.msg)
			}
			if body.Code != tt.status {
				t.Errorf("code = %d, expected %d", body.Code, tt.status)
			}
		})
	}
}

func TestError_AppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", NewBadRequest("Team ID is required"), http.StatusBadRequest},
		{"not found", NewNotFound("No surveys found for this team"), http.StatusNotFound},
		{"conflict", NewConflict("analysis already running"), http.StatusConflict},
		{"wrapped", fmt.Errorf("outer: %w", NewForbidden("not a member")), http.StatusForbidden},
		{"server", NewServerError("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) { Error(c, tt.err) })
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if parseError(t, w).Error == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestError_PlainError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("something broke"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if got := parseError(t, w).Error; got != "something broke" {
		t.Errorf("error = %q, expected %q", got, "something broke")
	}
}

func TestAppError_Error(t *testing.T) {
	err := NewNotFound("team not found")
	if err.Error() != "team not found" {
		t.Errorf("Error() = %q, expected %q", err.Error(), "team not found")
	}
}
