package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/metrics"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/utils/names"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PendingAction 人工处理动作
type PendingAction string

const (
	ActionApprove    PendingAction = "approve"
	ActionApproveNew PendingAction = "approve_new"
	ActionReject     PendingAction = "reject"
	ActionSnooze     PendingAction = "snooze"
)

// PendingOutcome 处理结果
type PendingOutcome struct {
	Pending       *model.PendingEntry
	Player        *model.Player
	PlayerCreated bool
	Entry         *model.Entry // 赛事已归档时为 nil
}

// PendingService 待确认队列与人工处理协议。每个动作一个事务，只能作用于 status=pending 的记录
type PendingService struct {
	cfg      EngineConfig
	store    *repository.Store
	entries  *EntryUpserter
	notifier interfaces.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

func NewPendingService(cfg EngineConfig, store *repository.Store, notifier interfaces.Notifier, m *metrics.Metrics,
	logger *logrus.Logger) *PendingService {
	cfg = cfg.withDefaults()
	return &PendingService{
		cfg:      cfg,
		store:    store,
		entries:  NewEntryUpserter(cfg, logger),
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// ExpireStale 新批次开始时把上一批次遗留的 pending 置为 expired
func (s *PendingService) ExpireStale(ctx context.Context, runID uint64, runStart time.Time) (int64, error) {
	n, err := s.store.Pending.ExpireStale(ctx, runStart, s.cfg.now())
	if err != nil {
		return 0, fmt.Errorf("过期待确认记录失败: %w", err)
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"sync_run_id": runID, "expired": n}).Info("上一批次的待确认记录已过期")
	}
	return n, nil
}

func (s *PendingService) Get(ctx context.Context, id uint64) (*model.PendingEntry, error) {
	p, err := s.store.Pending.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPendingNotFound
	}
	return p, err
}

func (s *PendingService) List(ctx context.Context, filter repository.PendingFilter, page, pageSize int) ([]*model.PendingEntry, int64, error) {
	return s.store.Pending.List(ctx, filter, page, pageSize)
}

// Approve 确认为已有选手：记录别名、生成报名、置为 resolved
func (s *PendingService) Approve(ctx context.Context, id, playerID uint64, actor string) (*PendingOutcome, error) {
	out, err := s.act(ctx, id, actor, func(tx *repository.Store, p *model.PendingEntry, out *PendingOutcome) error {
		player, err := tx.Players.GetByID(ctx, playerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		out.Player = player
		return s.materialize(ctx, tx, p, player, actor, out)
	})
	if err != nil {
		return nil, err
	}
	s.after(ctx, ActionApprove, out)
	return out, nil
}

// ApproveNew 确认为新选手：按原始姓名建选手，其余同 Approve
func (s *PendingService) ApproveNew(ctx context.Context, id uint64, actor string) (*PendingOutcome, error) {
	out, err := s.act(ctx, id, actor, func(tx *repository.Store, p *model.PendingEntry, out *PendingOutcome) error {
		player, created, err := tx.Players.CreateIfAbsent(ctx, &model.Player{
			FullName:       p.RawName,
			NormalizedName: p.NormalizedName,
			LatinName:      names.Transliterate(p.NormalizedName),
			CreatedAt:      s.cfg.now(),
		})
		if err != nil {
			return fmt.Errorf("创建选手失败: %w", err)
		}
		out.Player, out.PlayerCreated = player, created
		return s.materialize(ctx, tx, p, player, actor, out)
	})
	if err != nil {
		return nil, err
	}
	s.after(ctx, ActionApproveNew, out)
	return out, nil
}

// Reject 本批次丢弃这个姓名，不建选手也不建报名
func (s *PendingService) Reject(ctx context.Context, id uint64, actor string) (*PendingOutcome, error) {
	return s.closeAs(ctx, id, actor, model.PendingRejected, ActionReject)
}

// Snooze 暂不处理；记录保持 snoozed，下一批次若姓名仍在快照中会重新生成 pending
func (s *PendingService) Snooze(ctx context.Context, id uint64, actor string) (*PendingOutcome, error) {
	return s.closeAs(ctx, id, actor, model.PendingSnoozed, ActionSnooze)
}

func (s *PendingService) closeAs(ctx context.Context, id uint64, actor string, status model.PendingStatus, action PendingAction) (*PendingOutcome, error) {
	out, err := s.act(ctx, id, actor, func(tx *repository.Store, p *model.PendingEntry, out *PendingOutcome) error {
		p.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.after(ctx, action, out)
	return out, nil
}

// act 事务内加锁读取记录、校验状态、执行动作并写回
func (s *PendingService) act(ctx context.Context, id uint64, actor string,
	fn func(tx *repository.Store, p *model.PendingEntry, out *PendingOutcome) error) (*PendingOutcome, error) {
	out := &PendingOutcome{}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Pending.GetForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPendingNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != model.PendingOpen {
			return fmt.Errorf("%w: 当前状态 %s", ErrAlreadyResolved, p.Status)
		}
		if err := fn(tx, p, out); err != nil {
			return err
		}
		now := s.cfg.now()
		p.ResolvedBy = &actor
		p.ResolvedAt = &now
		p.UpdatedAt = now
		if err := tx.Pending.Save(ctx, p); err != nil {
			return fmt.Errorf("保存待确认记录失败: %w", err)
		}
		out.Pending = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// materialize 记录别名；赛事未归档时生成报名并置为 resolved，已归档只记别名并置为 approved
func (s *PendingService) materialize(ctx context.Context, tx *repository.Store, p *model.PendingEntry, player *model.Player,
	actor string, out *PendingOutcome) error {
	now := s.cfg.now()
	if err := tx.Aliases.Upsert(ctx, p.NormalizedName, player.ID, actor, now); err != nil {
		return fmt.Errorf("记录别名失败: %w", err)
	}
	p.ResolvedPlayerID = &player.ID

	t, err := tx.Tournaments.GetByID(ctx, p.TournamentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询赛事失败: %w", err)
	}
	if t == nil || t.IsArchived() {
		p.Status = model.PendingApproved
		return nil
	}

	entry, _, err := s.entries.Upsert(ctx, tx, t.ID, player.ID)
	if err != nil {
		return err
	}
	p.EntryID = &entry.ID
	p.Status = model.PendingResolved
	out.Entry = entry
	return nil
}

// after 提交后通知，失败只记日志
func (s *PendingService) after(ctx context.Context, action PendingAction, out *PendingOutcome) {
	s.metrics.PendingResolved(string(action))
	fields := logrus.Fields{
		"pending_id":    out.Pending.ID,
		"tournament_id": out.Pending.TournamentID,
		"action":        action,
		"status":        out.Pending.Status,
	}
	if out.Player != nil {
		fields["player_id"] = out.Player.ID
	}
	s.logger.WithFields(fields).Info("待确认记录已处理")

	at := s.cfg.now()
	if out.PlayerCreated {
		s.publish(ctx, interfaces.Event{
			Type: interfaces.EventPlayerCreated, OccurredAt: at, TournamentID: out.Pending.TournamentID,
			PlayerID: out.Player.ID, PendingID: out.Pending.ID,
			Payload: map[string]interface{}{"full_name": out.Player.FullName},
		})
	}
	ev := interfaces.Event{
		Type: interfaces.EventPendingResolved, OccurredAt: at, SyncRunID: out.Pending.SyncRunID,
		TournamentID: out.Pending.TournamentID, PendingID: out.Pending.ID,
		Payload: map[string]interface{}{"action": action, "status": out.Pending.Status},
	}
	if out.Player != nil {
		ev.PlayerID = out.Player.ID
	}
	s.publish(ctx, ev)
}

func (s *PendingService) publish(ctx context.Context, ev interfaces.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.metrics.EventDropped()
		s.logger.WithError(err).WithField("event_type", ev.Type).Warn("事件发布失败")
	}
}
