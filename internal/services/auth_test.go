package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/utils"
)

func newAuthService(t *testing.T) (*AuthService, *EventHub) {
	t.Helper()
	utils.SetJWTSecret("auth-test-secret")
	events := NewEventHub()
	return NewAuthService(newTestDB(t), &config.JWTConfig{ExpireHour: 1, RefreshExpireHour: 24}, events), events
}

func TestAuthService_SignUp(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, &SignUpRequest{Email: " Alice@Example.com ", Password: "secret1", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)
	assert.True(t, utils.CheckPassword("secret1", user.Password))

	_, err = svc.SignUp(ctx, &SignUpRequest{Email: "alice@example.com", Password: "secret2", Name: "Other"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.SignUp(ctx, &SignUpRequest{Email: "bob@example.com", Password: "123", Name: "Bob"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_SignUpPasswordRules(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"too short", "12345", true},
		{"minimum length", "123456", false},
		{"bcrypt limit", strings.Repeat("p", 72), false},
		{"over bcrypt limit", strings.Repeat("p", 73), true},
		{"multibyte counts bytes", strings.Repeat("é", 37), true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := fmt.Sprintf("user%d@example.com", i)
			user, err := svc.SignUp(ctx, &SignUpRequest{Email: email, Password: tt.password, Name: "User"})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, utils.CheckPassword(tt.password, user.Password))
		})
	}
}

func TestAuthService_LoginRefreshLogout(t *testing.T) {
	svc, events := newAuthService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, &SignUpRequest{Email: "alice@example.com", Password: "secret1", Name: "Alice"})
	require.NoError(t, err)
	sessions := events.Subscribe("sessions", Subscription{UserID: user.ID})

	_, err = svc.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "wrong"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret1"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := svc.Login(ctx, &LoginRequest{Email: "ALICE@example.com", Password: "secret1"}, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, login.RefreshToken)
	assert.True(t, login.RefreshExpireAt.After(login.AccessExpireAt))

	claims, err := utils.ParseToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	expectEvent(t, sessions, EventSignedIn)

	var stored models.RefreshToken
	require.NoError(t, svc.db.First(&stored).Error)
	assert.NotEqual(t, login.RefreshToken, stored.TokenHash, "refresh tokens are stored hashed")
	assert.Equal(t, "127.0.0.1", stored.CreatedByIP)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, login.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidToken, "a rotated token cannot be reused")
	_, err = svc.Refresh(ctx, "garbage", "", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, identityOf(user), ""))
	expectEvent(t, sessions, EventSignedOut)

	_, err = svc.Refresh(ctx, refreshed.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidToken, "logout revokes every session")
}

func TestAuthService_RefreshExpired(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	user := createUser(t, svc.db, "Alice")

	token, hash, err := generateRefreshToken()
	require.NoError(t, err)
	require.NoError(t, svc.db.Create(&models.RefreshToken{UserID: user.ID, TokenHash: hash, ExpiresAt: time.Now().Add(-time.Minute)}).Error)

	_, err = svc.Refresh(ctx, token, "", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Me(t *testing.T) {
	svc, _ := newAuthService(t)
	user := createUser(t, svc.db, "Alice")

	me, err := svc.Me(context.Background(), identityOf(user))
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)

	_, err = svc.Me(context.Background(), Identity{UserID: "gone"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHashRefreshToken(t *testing.T) {
	a := hashRefreshToken("token")
	if len(a) != 64 {
		t.Errorf("hash length = %d, expected 64", len(a))
	}
	if a != hashRefreshToken("token") {
		t.Error("hash must be deterministic")
	}
	if a == hashRefreshToken("other") {
		t.Error("different tokens must hash differently")
	}
}

func expectEvent(t *testing.T, ch <-chan Event, eventType string) {
	t.Helper()
	select {
	case ev := <-ch:
		assert.Equal(t, eventType, ev.Type)
	case <-time.After(time.Second):
		t.Fatalf("expected %s event", eventType)
	}
}
