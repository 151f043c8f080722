package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// releaseScript 只删除自己持有的锁
// 锁过期后被其他实例获取时,迟到的释放不会误删别人的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于Redis的互斥锁
// Key设计：lock:{name}
// SET lock:{name} <token> NX PX <ttl>
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker 创建分布式锁
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, prefix: "lock:"}
}

// TryLock 尝试获取锁
// 获取成功返回释放函数;锁已被持有时返回(nil, false, nil)
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, apperrors.Wrap(err, "获取分布式锁失败")
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return apperrors.Wrap(err, "释放分布式锁失败")
		}
		return nil
	}
	return release, true, nil
}
