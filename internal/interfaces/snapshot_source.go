package interfaces

import (
	"context"
	"time"

	"LundaSync/internal/config"

	"github.com/sirupsen/logrus"
)

// Snapshot 一次读取到的快照内容
type Snapshot struct {
	Location string
	ModTime  *time.Time // 源不提供时为 nil
	Data     []byte
}

// SnapshotSource 快照来源（本地文件、S3、HTTP）
type SnapshotSource interface {
	Scheme() string
	Location() string
	Fetch(ctx context.Context) (*Snapshot, error)
}

// SnapshotSourceFactory 按快照位置创建来源
type SnapshotSourceFactory func(location string, cfg *config.Config, logger *logrus.Logger) (SnapshotSource, error)
