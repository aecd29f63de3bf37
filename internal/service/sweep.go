package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LundaSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// SweepResult 清扫结果
type SweepResult struct {
	AgedArchived       []uint64
	AbsentArchived     []uint64
	EntriesDeactivated int64
}

// Sweeper 批次结束后的归档清扫。只依据 last_seen_at 与开赛时间，进程中途崩溃后重跑同样安全
type Sweeper struct {
	cfg    EngineConfig
	store  *repository.Store
	logger *logrus.Logger
}

func NewSweeper(cfg EngineConfig, store *repository.Store, logger *logrus.Logger) *Sweeper {
	return &Sweeper{cfg: cfg.withDefaults(), store: store, logger: logger}
}

// Run 两个独立步骤各自一个事务，一个失败不影响另一个，错误合并返回
func (s *Sweeper) Run(ctx context.Context, runStart time.Time, touched []uint64) (*SweepResult, error) {
	res := &SweepResult{}
	var errs []error

	aged, err := s.ArchiveAged(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.AgedArchived = aged

	absent, deactivated, err := s.ArchiveAbsent(ctx, runStart, touched)
	if err != nil {
		errs = append(errs, err)
	}
	res.AbsentArchived = absent
	res.EntriesDeactivated = deactivated

	return res, errors.Join(errs...)
}

// ArchiveAged 开赛超过宽限期的赛事无论是否仍在快照中都归档
func (s *Sweeper) ArchiveAged(ctx context.Context) ([]uint64, error) {
	now := s.cfg.now()
	cutoff := now.Add(-s.cfg.GracePeriod)
	var ids []uint64
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		ids, err = tx.Tournaments.ArchiveAged(ctx, cutoff, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("按时间归档失败: %w", err)
	}
	for _, id := range ids {
		s.logger.WithFields(logrus.Fields{"tournament_id": id, "cutoff": cutoff}).Info("赛事已过宽限期，归档")
	}
	return ids, nil
}

// ArchiveAbsent 本批次没有出现的赛事归档，并停用其全部报名（不删除）
func (s *Sweeper) ArchiveAbsent(ctx context.Context, runStart time.Time, touched []uint64) ([]uint64, int64, error) {
	now := s.cfg.now()
	var (
		ids         []uint64
		deactivated int64
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		ids, err = tx.Tournaments.ArchiveAbsent(ctx, runStart, touched, now)
		if err != nil {
			return err
		}
		deactivated, err = tx.Entries.DeactivateByTournaments(ctx, ids, now)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("按缺席归档失败: %w", err)
	}
	for _, id := range ids {
		s.logger.WithField("tournament_id", id).Info("赛事不在本次快照中，归档并停用报名")
	}
	return ids, deactivated, nil
}
