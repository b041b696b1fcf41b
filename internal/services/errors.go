package services

import (
	"errors"
	"fmt"

	"github.com/teamello/backend/pkg/response"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNoSurveysFound      = errors.New("no surveys found for this team")
	ErrTeamNotFound        = errors.New("team not found")
	ErrAnalysisNotFound    = errors.New("no analysis found for this team")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrAnalysisInProgress  = errors.New("an analysis is already running for this team")
	ErrPersistence         = errors.New("persistence error")
	ErrNotTeamMember       = errors.New("you are not a member of this team")
	ErrNotTeamLeader       = errors.New("only a team leader can do this")
	ErrAlreadyMember       = errors.New("user is already a member of this team")
	ErrSurveyExists        = errors.New("survey already submitted for this team")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired refresh token")
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

// NewValidationError returns an error matching ErrValidation whose message is shown as-is.
func NewValidationError(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// ToAppError maps a service error onto the HTTP error it should surface as.
func ToAppError(err error) *response.AppError {
	if err == nil {
		return nil
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrValidation):
		return response.NewBadRequest(err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return response.NewUnauthorized(err.Error())
	case errors.Is(err, ErrNotTeamMember), errors.Is(err, ErrNotTeamLeader):
		return response.NewForbidden(err.Error())
	case errors.Is(err, ErrNoSurveysFound):
		return response.NewNotFound("No surveys found for this team")
	case errors.Is(err, ErrTeamNotFound), errors.Is(err, ErrAnalysisNotFound), errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrLLMConfigNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrSurveyExists),
		errors.Is(err, ErrAnalysisInProgress), errors.Is(err, ErrEmailTaken):
		return response.NewConflict(err.Error())
	case errors.Is(err, ErrAnalysisUnavailable):
		return response.NewServerError("AI analysis is unavailable, please try again later")
	case errors.Is(err, ErrPersistence):
		return response.NewServerError("failed to access the database")
	default:
		return response.NewServerError(err.Error())
	}
}
