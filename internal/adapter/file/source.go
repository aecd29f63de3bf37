// Package file 本地文件快照来源
package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"LundaSync/internal/config"
	"LundaSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

const Scheme = "file"

type Source struct {
	path string
}

func New(location string, _ *config.Config, _ *logrus.Logger) (interfaces.SnapshotSource, error) {
	path := strings.TrimPrefix(location, Scheme+"://")
	if path == "" {
		return nil, fmt.Errorf("快照文件路径为空")
	}
	return &Source{path: path}, nil
}

func (s *Source) Scheme() string   { return Scheme }
func (s *Source) Location() string { return s.path }

// Fetch 读取整个文件，mtime 取文件修改时间
func (s *Source) Fetch(ctx context.Context) (*interfaces.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("读取快照文件信息失败: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("读取快照文件失败: %w", err)
	}
	mtime := info.ModTime()
	return &interfaces.Snapshot{Location: s.path, ModTime: &mtime, Data: data}, nil
}
