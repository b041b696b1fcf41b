package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

// AnalysisGuard allows at most one analysis run per team at a time. Acquire
// returns ErrAnalysisInProgress while another holder is active; the returned
// release func must be called when the run ends.
type AnalysisGuard interface {
	Acquire(ctx context.Context, teamID string) (release func(), err error)
}

// NewAnalysisGuard picks the Redis guard when Redis is enabled and reachable,
// the database guard otherwise.
func NewAnalysisGuard(db *gorm.DB, cfg *config.Config) AnalysisGuard {
	ttl := cfg.Analysis.LockTTL()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Infof("[Analysis] Using Redis analysis guard at %s", cfg.Redis.Addr)
			return NewRedisAnalysisGuard(client, ttl)
		}
		logger.Warnf("[Analysis] Redis unavailable for analysis guard, using database: %v", err)
		client.Close()
	}
	return NewDBAnalysisGuard(db, ttl)
}

// DBAnalysisGuard relies on the unique team_id of analysis_locks. Locks past
// their expiry are treated as abandoned.
type DBAnalysisGuard struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewDBAnalysisGuard(db *gorm.DB, ttl time.Duration) *DBAnalysisGuard {
	return &DBAnalysisGuard{db: db, ttl: ttl}
}

func (g *DBAnalysisGuard) Acquire(ctx context.Context, teamID string) (func(), error) {
	db := g.db.WithContext(ctx)
	now := time.Now()

	if err := db.Where("team_id = ? AND expires_at < ?", teamID, now).Delete(&models.AnalysisLock{}).Error; err != nil {
		return nil, persistenceError("clear stale analysis lock", err)
	}

	owner := uuid.New().String()
	lock := models.AnalysisLock{
		TeamID:    teamID,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := db.Create(&lock).Error; err != nil {
		var held int64
		if cerr := db.Model(&models.AnalysisLock{}).Where("team_id = ?", teamID).Count(&held).Error; cerr == nil && held > 0 {
			return nil, ErrAnalysisInProgress
		}
		return nil, persistenceError("acquire analysis lock", err)
	}

	release := func() {
		if err := g.db.Where("team_id = ? AND locked_by = ?", teamID, owner).Delete(&models.AnalysisLock{}).Error; err != nil {
			logger.Warnf("[Analysis] Failed to release lock for team %s: %v", teamID, err)
		}
	}
	return release, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisAnalysisGuard holds a SETNX key per team, shared by every instance.
type RedisAnalysisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAnalysisGuard(client *redis.Client, ttl time.Duration) *RedisAnalysisGuard {
	return &RedisAnalysisGuard{client: client, ttl: ttl}
}

func redisLockKey(teamID string) string {
	return "teamello:analysis_lock:" + teamID
}

func (g *RedisAnalysisGuard) Acquire(ctx context.Context, teamID string) (func(), error) {
	key := redisLockKey(teamID)
	owner := uuid.New().String()

	ok, err := g.client.SetNX(ctx, key, owner, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire redis analysis lock: %w", err)
	}
	if !ok {
		return nil, ErrAnalysisInProgress
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{key}, owner).Err(); err != nil {
			logger.Warnf("[Analysis] Failed to release redis lock for team %s: %v", teamID, err)
		}
	}
	return release, nil
}
