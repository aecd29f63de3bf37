package adapter

import (
	"fmt"
	"strings"

	"LundaSync/internal/adapter/file"
	"LundaSync/internal/adapter/httpsource"
	"LundaSync/internal/adapter/s3source"
	"LundaSync/internal/config"
	"LundaSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

func init() {
	Register(file.Scheme, file.New)
	Register(s3source.Scheme, s3source.New)
	Register("http", httpsource.New)
	Register("https", httpsource.New)
}

// SchemeOf 位置字符串的 scheme，没有 "://" 的按本地文件处理
func SchemeOf(location string) string {
	idx := strings.Index(location, "://")
	if idx <= 0 {
		return file.Scheme
	}
	return strings.ToLower(location[:idx])
}

// Open 按位置选择来源实现，新增来源只需在 init 中注册
func Open(location string, cfg *config.Config, logger *logrus.Logger) (interfaces.SnapshotSource, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("未配置快照位置")
	}
	scheme := SchemeOf(location)
	factory, ok := GetFactory(scheme)
	if !ok {
		return nil, fmt.Errorf("不支持的快照来源: %s（已支持：%v）", scheme, ListSchemes())
	}
	src, err := factory(location, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("创建快照来源失败: %w", err)
	}
	logger.WithFields(logrus.Fields{"scheme": scheme, "location": src.Location()}).Debug("快照来源已就绪")
	return src, nil
}
