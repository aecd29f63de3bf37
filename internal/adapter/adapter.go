package adapter

import (
	"fmt"
	"sort"

	"LundaSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// 快照来源工厂注册表，按 scheme 索引
var factoryRegistry = make(map[string]interfaces.SnapshotSourceFactory)

// Register 注册某个 scheme 的来源工厂
func Register(scheme string, factory interfaces.SnapshotSourceFactory) {
	if factory == nil {
		panic(fmt.Sprintf("快照来源%s的工厂函数不能为nil", scheme))
	}
	if _, exists := factoryRegistry[scheme]; exists {
		logrus.Warnf("快照来源%s已注册，将覆盖原有实现", scheme)
	}
	factoryRegistry[scheme] = factory
}

// GetFactory 获取指定 scheme 的工厂函数
func GetFactory(scheme string) (interfaces.SnapshotSourceFactory, bool) {
	factory, ok := factoryRegistry[scheme]
	return factory, ok
}

// ListSchemes 已注册的 scheme，按字母序
func ListSchemes() []string {
	schemes := make([]string, 0, len(factoryRegistry))
	for s := range factoryRegistry {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
