package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RunLock 会话级 advisory lock，持有一个专用连接直到 Release
type RunLock struct {
	release func(ctx context.Context) error
}

func (l *RunLock) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	return l.release(ctx)
}

// TryRunLock 非阻塞获取 pg_try_advisory_lock(key)。ok=false 表示已被其他进程持有。
// 非 postgres 方言直接返回一个空锁，由进程内互斥保证单写者
func TryRunLock(ctx context.Context, db *gorm.DB, key int64) (*RunLock, bool, error) {
	if db.Dialector.Name() != DriverPostgres {
		return &RunLock{}, true, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, false, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("获取锁连接失败: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("获取 advisory lock 失败: %w", err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}
	return &RunLock{release: func(ctx context.Context) error {
		defer conn.Close()
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key)
		return err
	}}, true, nil
}
