package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/utils"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

// Identity is the authenticated caller, passed explicitly into service calls.
type Identity struct {
	UserID string
	Email  string
}

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
	events    *EventHub
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, events *EventHub) *AuthService {
	return &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
		configSvc: NewSystemConfigService(db),
		events:    events,
	}
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`
}

type RefreshResult struct {
	AccessToken     string    `json:"access_token"`
	AccessExpireAt  time.Time `json:"access_expire_at"`
	RefreshToken    string    `json:"refresh_token"`
	RefreshExpireAt time.Time `json:"refresh_expire_at"`
}

// SignUp creates an account. Emails are stored lowercased.
func (s *AuthService) SignUp(ctx context.Context, req *SignUpRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, NewValidationError("email and name are required")
	}
	if len(req.Password) < 6 {
		return nil, NewValidationError("password must be at least 6 characters")
	}
	// bcrypt rejects longer input
	if len(req.Password) > 72 {
		return nil, NewValidationError("password must be at most 72 bytes")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, persistenceError("check email", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, Name: name, Password: hashed}
	if err := db.Create(&user).Error; err != nil {
		return nil, persistenceError("insert user", err)
	}
	logger.Info().Str("user_id", user.ID).Msg("[Auth] user signed up")
	return &user, nil
}

// Login checks email and password and issues an access/refresh token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistenceError("load user", err)
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	accessHours := s.getAccessTokenExpireHours()
	token, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   time.Now().Add(time.Duration(s.getRefreshTokenExpireHours()) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := db.Create(&refreshRecord).Error; err != nil {
		return nil, persistenceError("insert refresh token", err)
	}

	now := time.Now()
	user.LastLogin = &now
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("[Auth] failed to update last login")
	}

	s.publish(EventSignedIn, user.ID)
	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            &user,
	}, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, persistenceError("load refresh token", err)
	}
	now := time.Now()
	if !stored.Active(now) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := db.Where("id = ?", stored.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, persistenceError("load user", err)
	}

	accessHours := s.getAccessTokenExpireHours()
	accessToken, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, err
	}
	newToken, newHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newHash,
		ExpiresAt:   now.Add(time.Duration(s.getRefreshTokenExpireHours()) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		// the revoked_at guard makes a replayed token lose the race
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}
		return nil
	})
	if errors.Is(err, ErrInvalidToken) {
		return nil, err
	}
	if err != nil {
		return nil, persistenceError("rotate refresh token", err)
	}

	return &RefreshResult{
		AccessToken:     accessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

// Logout revokes the given refresh token, or every active token of the user
// when none is supplied.
func (s *AuthService) Logout(ctx context.Context, identity Identity, refreshToken string) error {
	q := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", identity.UserID)
	if refreshToken != "" {
		q = q.Where("token_hash = ?", hashRefreshToken(refreshToken))
	}
	if err := q.Update("revoked_at", time.Now()).Error; err != nil {
		return persistenceError("revoke refresh token", err)
	}
	s.publish(EventSignedOut, identity.UserID)
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, identity Identity) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", identity.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) publish(eventType, userID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{Type: eventType, UserID: userID})
}

func (s *AuthService) getAccessTokenExpireHours() int {
	defaultHours := s.jwtConfig.ExpireHour
	if defaultHours <= 0 {
		defaultHours = 24
	}
	value := s.configSvc.GetWithDefault(KeyAccessTokenExpireHours, strconv.Itoa(defaultHours))
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return defaultHours
	}
	return hours
}

func (s *AuthService) getRefreshTokenExpireHours() int {
	defaultHours := s.jwtConfig.RefreshExpireHour
	if defaultHours <= 0 {
		defaultHours = 720
	}
	value := s.configSvc.GetWithDefault(KeyRefreshTokenExpireHours, strconv.Itoa(defaultHours))
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return defaultHours
	}
	return hours
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
