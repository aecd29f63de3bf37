package service

import (
	"context"
	"fmt"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// EntryUpserter 维护 (tournament, player) 参赛关系
type EntryUpserter struct {
	cfg    EngineConfig
	logger *logrus.Logger
}

func NewEntryUpserter(cfg EngineConfig, logger *logrus.Logger) *EntryUpserter {
	return &EntryUpserter{cfg: cfg.withDefaults(), logger: logger}
}

// Upsert 已存在则重新激活并刷新 last_seen_at，支付字段和 first_seen_at 不动；不存在则以 pending/active 插入
func (u *EntryUpserter) Upsert(ctx context.Context, store *repository.Store, tournamentID, playerID uint64) (*model.Entry, bool, error) {
	now := u.cfg.now()
	e, err := store.Entries.Find(ctx, tournamentID, playerID)
	if err != nil {
		return nil, false, fmt.Errorf("查询报名失败: %w", err)
	}
	if e != nil {
		if err := store.Entries.Reactivate(ctx, e.ID, now); err != nil {
			return nil, false, fmt.Errorf("激活报名失败: %w", err)
		}
		e.Active = true
		e.LastSeenAt = now
		return e, false, nil
	}

	e = &model.Entry{
		TournamentID:  tournamentID,
		PlayerID:      playerID,
		PaymentStatus: model.PaymentPending,
		Active:        true,
		FirstSeenAt:   now,
		LastSeenAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Entries.Create(ctx, e); err != nil {
		return nil, false, fmt.Errorf("创建报名失败: %w", err)
	}
	return e, true, nil
}

// ReconcileResult 单场赛事里不再出现的报名如何处理
type ReconcileResult struct {
	Deleted     []uint64
	Deactivated []uint64
}

// Reconcile 处理本场赛事当前名单之外的报名：已支付、线下收款或管理员手动添加的只置 inactive，其余删除。
// keep 为本批次在该赛事解析出的选手 id
func (u *EntryUpserter) Reconcile(ctx context.Context, store *repository.Store, tournamentID uint64, keep map[uint64]struct{}) (*ReconcileResult, error) {
	now := u.cfg.now()
	entries, err := store.Entries.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("查询赛事报名失败: %w", err)
	}

	res := &ReconcileResult{}
	for _, e := range entries {
		if _, ok := keep[e.PlayerID]; ok {
			continue
		}
		if e.Protected() {
			if e.Active {
				res.Deactivated = append(res.Deactivated, e.ID)
			}
			continue
		}
		res.Deleted = append(res.Deleted, e.ID)
	}

	if err := store.Entries.Deactivate(ctx, res.Deactivated, now); err != nil {
		return nil, fmt.Errorf("停用报名失败: %w", err)
	}
	if err := store.Entries.Delete(ctx, res.Deleted); err != nil {
		return nil, fmt.Errorf("删除报名失败: %w", err)
	}
	if len(res.Deleted) > 0 || len(res.Deactivated) > 0 {
		u.logger.WithFields(logrus.Fields{
			"tournament_id": tournamentID,
			"deleted":       res.Deleted,
			"deactivated":   res.Deactivated,
		}).Info("已处理名单外的报名")
	}
	return res, nil
}
