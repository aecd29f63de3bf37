package service

import (
	"errors"
	"time"

	"LundaSync/internal/config"
	"LundaSync/internal/repository"
)

var (
	ErrPendingNotFound    = errors.New("待确认记录不存在")
	ErrTournamentNotFound = errors.New("赛事不存在")
	ErrAlreadyResolved    = errors.New("待确认记录已处理")
	ErrPlayerNotFound     = errors.New("选手不存在")
	ErrStoreUnavailable   = errors.New("数据库不可用")
	ErrRunInProgress      = errors.New("已有同步任务在运行")
	ErrEmptyName          = errors.New("姓名为空")
)

// Clock 当前时间来源，测试里替换为可推进的时钟
type Clock func() time.Time

// EngineConfig 对账引擎参数，由 config.SyncConfig 构造后显式传入
type EngineConfig struct {
	GracePeriod              time.Duration
	PendingCandidatePoolSize int
	PendingTopN              int
	MaxCandidateDistance     int
	Location                 *time.Location
	SourceTag                string
	FuzzyBackend             repository.FuzzyBackend
	LockKey                  int64
	ReconnectAttempts        int
	Now                      Clock
}

// NewEngineConfig 从配置构造，缺省值与 config 默认值一致
func NewEngineConfig(cfg *config.SyncConfig) (EngineConfig, error) {
	loc, err := cfg.Location()
	if err != nil {
		return EngineConfig{}, err
	}
	ec := EngineConfig{
		GracePeriod:              cfg.GracePeriod,
		PendingCandidatePoolSize: cfg.PendingCandidatePoolSize,
		PendingTopN:              cfg.PendingTopN,
		MaxCandidateDistance:     cfg.MaxCandidateDistance,
		Location:                 loc,
		SourceTag:                cfg.SourceTag,
		FuzzyBackend:             repository.FuzzyBackend(cfg.FuzzyBackend),
		LockKey:                  cfg.LockKey,
		ReconnectAttempts:        cfg.ReconnectAttempts,
	}
	return ec.withDefaults(), nil
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 48 * time.Hour
	}
	if c.PendingCandidatePoolSize <= 0 {
		c.PendingCandidatePoolSize = 30
	}
	if c.PendingTopN <= 0 {
		c.PendingTopN = 5
	}
	if c.MaxCandidateDistance <= 0 {
		c.MaxCandidateDistance = 3
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.SourceTag == "" {
		c.SourceTag = "lunda"
	}
	if c.FuzzyBackend == "" {
		c.FuzzyBackend = repository.FuzzyAuto
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// now 取当前时间：统一换算到配置时区并截断到微秒，和库里存的精度一致
func (c EngineConfig) now() time.Time {
	return c.Now().In(c.Location).Truncate(time.Microsecond)
}
