package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// uploadQuota 按岗位、按 UTC 自然日计数上传次数。
type uploadQuota struct {
	client redisRateCounter
	limit  int64
	now    func() time.Time
}

func (q uploadQuota) key(jobID uint) string {
	return fmt.Sprintf("talentflow:uploads:%d:%s", jobID, q.now().UTC().Format("20060102"))
}

// allow 计入一次上传并报告是否仍在当日额度内。未配置 redis 或额度时总是放行。
func (q uploadQuota) allow(ctx context.Context, jobID uint) (bool, error) {
	if q.client == nil || q.limit <= 0 {
		return true, nil
	}
	key := q.key(jobID)
	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		_ = q.client.Expire(ctx, key, 25*time.Hour).Err()
	}
	return count <= q.limit, nil
}
