package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/teamello/backend/pkg/response"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", NewValidationError("Team ID is required"), http.StatusBadRequest, "Team ID is required"},
		{"no surveys", ErrNoSurveysFound, http.StatusNotFound, "No surveys found for this team"},
		{"wrapped no surveys", fmt.Errorf("analyze: %w", ErrNoSurveysFound), http.StatusNotFound, "No surveys found for this team"},
		{"team not found", ErrTeamNotFound, http.StatusNotFound, ErrTeamNotFound.Error()},
		{"unavailable", fmt.Errorf("%w: timeout", ErrAnalysisUnavailable), http.StatusInternalServerError, "AI analysis is unavailable, please try again later"},
		{"persistence", persistenceError("insert", errors.New("disk full")), http.StatusInternalServerError, "failed to access the database"},
		{"in progress", ErrAnalysisInProgress, http.StatusConflict, ErrAnalysisInProgress.Error()},
		{"survey exists", ErrSurveyExists, http.StatusConflict, ErrSurveyExists.Error()},
		{"not member", ErrNotTeamMember, http.StatusForbidden, ErrNotTeamMember.Error()},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized, ErrInvalidCredentials.Error()},
		{"app error passes through", response.NewConflict("custom"), http.StatusConflict, "custom"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			if appErr.HTTPStatus != tt.status {
				t.Errorf("status = %d, expected %d", appErr.HTTPStatus, tt.status)
			}
			if appErr.Message != tt.msg {
				t.Errorf("message = %q, expected %q", appErr.Message, tt.msg)
			}
		})
	}

	if ToAppError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}

func TestPersistenceErrorDoesNotLeakDetails(t *testing.T) {
	err := persistenceError("insert team analysis", errors.New("UNIQUE constraint failed"))
	if !errors.Is(err, ErrPersistence) {
		t.Fatal("expected ErrPersistence")
	}
	if msg := ToAppError(err).Message; msg != "failed to access the database" {
		t.Errorf("message = %q", msg)
	}
}
