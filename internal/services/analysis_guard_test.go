package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
)

func TestDBAnalysisGuard(t *testing.T) {
	db := newTestDB(t)
	guard := NewDBAnalysisGuard(db, time.Minute)
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "team-1")
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "team-1")
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	other, err := guard.Acquire(ctx, "team-2")
	require.NoError(t, err, "teams are guarded independently")
	other()

	release()
	again, err := guard.Acquire(ctx, "team-1")
	require.NoError(t, err)
	again()
}

func TestDBAnalysisGuard_StaleLockIsReclaimed(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.AnalysisLock{
		TeamID:    "team-1",
		LockedBy:  "crashed-worker",
		LockedAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)

	release, err := NewDBAnalysisGuard(db, time.Minute).Acquire(context.Background(), "team-1")
	require.NoError(t, err)
	release()
}

func TestDBAnalysisGuard_ReleaseOnlyOwnLock(t *testing.T) {
	db := newTestDB(t)
	guard := NewDBAnalysisGuard(db, time.Minute)

	release, err := guard.Acquire(context.Background(), "team-1")
	require.NoError(t, err)
	release()

	// a second holder must survive a repeated release of the first
	second, err := guard.Acquire(context.Background(), "team-1")
	require.NoError(t, err)
	release()
	_, err = guard.Acquire(context.Background(), "team-1")
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	second()
}

func TestNewAnalysisGuard_DefaultsToDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false
	guard := NewAnalysisGuard(newTestDB(t), cfg)
	if _, ok := guard.(*DBAnalysisGuard); !ok {
		t.Errorf("expected *DBAnalysisGuard, got %T", guard)
	}
}

func TestRedisAnalysisGuard(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	teamID := "guard-test-" + time.Now().Format("150405.000000")
	guard := NewRedisAnalysisGuard(client, 10*time.Second)

	release, err := guard.Acquire(context.Background(), teamID)
	require.NoError(t, err)
	_, err = guard.Acquire(context.Background(), teamID)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	release()
	again, err := guard.Acquire(context.Background(), teamID)
	require.NoError(t, err)
	again()
}
