package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Scheduler serve 模式下按 cron 定时触发同步批次
type Scheduler struct {
	sched  gocron.Scheduler
	sync   *SyncService
	logger *logrus.Logger
}

// NewScheduler expr 为标准 5 段 cron，按引擎时区解释。上一批次未结束时本次顺延
func NewScheduler(sync *SyncService, expr string, logger *logrus.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(sync.cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}
	s := &Scheduler{sched: sched, sync: sync, logger: logger}
	_, err = sched.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(s.runOnce),
		gocron.WithName("lunda-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("注册同步任务失败: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("同步调度器已启动")
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if _, err := s.sync.Run(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Info("已有同步批次在运行，本次跳过")
			return
		}
		s.logger.WithError(err).Error("定时同步失败")
	}
}
