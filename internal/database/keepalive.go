package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EnsureAlive 每个工作单元开始前调用：ping 失败时按指数退避重试 attempts 次。
// database/sql 会丢弃坏连接并在下一次使用时重新建连，所以 ping 成功即视为已重连
func EnsureAlive(ctx context.Context, db *gorm.DB, attempts int, log *logrus.Logger) error {
	if attempts < 0 {
		attempts = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	try := 0
	return backoff.Retry(func() error {
		try++
		err := Ping(ctx, db)
		if err != nil && try <= attempts {
			log.WithError(err).WithField("attempt", try).Warn("数据库连接不可用，准备重连")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts)), ctx))
}
