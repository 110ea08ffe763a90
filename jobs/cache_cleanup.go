package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiringCache drops entries past their expiry
type ExpiringCache interface {
	PurgeExpired() int
}

// CacheCleanupJob keeps the in-memory quote cache from holding dead entries.
// Reads already ignore expired entries, so skipping a run never serves stale data.
type CacheCleanupJob struct {
	Cache ExpiringCache
}

func NewCacheCleanupJob(cache ExpiringCache) *CacheCleanupJob {
	return &CacheCleanupJob{Cache: cache}
}

func (j *CacheCleanupJob) Run() int {
	logrus.Info("Starting Cache Cleanup Job")
	purged := j.Cache.PurgeExpired()
	logrus.WithField("purged", purged).Info("Cache Cleanup Job completed")
	return purged
}

// Start runs the job every interval until ctx is done
func (j *CacheCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Run()
			}
		}
	}()
}
