package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/utils/names"

	"github.com/sirupsen/logrus"
)

// ResolveStatus 姓名解析结果
type ResolveStatus string

const (
	StatusResolved         ResolveStatus = "resolved"
	StatusPendingCreated   ResolveStatus = "pending_created"
	StatusNewPlayerCreated ResolveStatus = "new_player_created"
)

// Resolution 一次解析的结果。PlayerID 仅在 resolved / new_player_created 时有效
type Resolution struct {
	Status     ResolveStatus
	PlayerID   uint64
	MatchedBy  string // alias / exact / normalized / new
	Pending    *model.PendingEntry
	Refreshed  bool // 刷新了已有的 pending 行
	Candidates []model.Candidate
}

// unresolvedName 只由 Resolve 在别名和精确匹配都落空后构造，模糊检索只接受这个类型，
// 因此不会把与输入字面相同的已有选手当作候选
type unresolvedName struct {
	raw        string
	normalized string
}

// Resolver 把快照里的原始姓名解析为选手
type Resolver struct {
	cfg    EngineConfig
	logger *logrus.Logger

	degradeOnce sync.Once
}

func NewResolver(cfg EngineConfig, logger *logrus.Logger) *Resolver {
	return &Resolver{cfg: cfg.withDefaults(), logger: logger}
}

// Resolve 依次尝试：别名、显示名精确匹配、规范化名匹配、模糊候选；
// 有候选则创建/刷新 pending，本批次不建选手也不建报名；没有候选则新建选手
func (r *Resolver) Resolve(ctx context.Context, store *repository.Store, rawName string, tournamentID, runID uint64) (*Resolution, error) {
	normalized := names.Normalize(rawName)
	if normalized == "" {
		return nil, ErrEmptyName
	}

	alias, err := store.Aliases.Find(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("查询别名失败: %w", err)
	}
	if alias != nil {
		return &Resolution{Status: StatusResolved, PlayerID: alias.PlayerID, MatchedBy: "alias"}, nil
	}

	player, err := store.Players.FindByFullName(ctx, rawName)
	if err != nil {
		return nil, fmt.Errorf("按显示名查询选手失败: %w", err)
	}
	if player != nil {
		return &Resolution{Status: StatusResolved, PlayerID: player.ID, MatchedBy: "exact"}, nil
	}
	player, err = store.Players.FindByNormalized(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("按规范化名查询选手失败: %w", err)
	}
	if player != nil {
		return &Resolution{Status: StatusResolved, PlayerID: player.ID, MatchedBy: "normalized"}, nil
	}

	name := unresolvedName{raw: rawName, normalized: normalized}
	candidates, err := r.findCandidates(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return r.createPlayer(ctx, store, name)
	}
	return r.upsertPending(ctx, store, name, candidates, tournamentID, runID)
}

func (r *Resolver) findCandidates(ctx context.Context, store *repository.Store, name unresolvedName) ([]model.Candidate, error) {
	pool, err := store.Candidates.Nearest(ctx, name.normalized, r.cfg.PendingCandidatePoolSize)
	if err != nil {
		// 只有检索能力缺失（levenshtein 函数不存在）才降级为无候选，其余错误回滚本场
		if !repository.IsUndefinedFunction(err) {
			return nil, fmt.Errorf("模糊检索失败: %w", err)
		}
		r.degradeOnce.Do(func() {
			r.logger.WithError(err).Warn("模糊候选检索不可用，按无候选处理")
		})
		pool = nil
	}

	candidates := RankCandidates(name.normalized, pool, r.cfg.PendingTopN, r.cfg.MaxCandidateDistance)
	if len(candidates) > 0 {
		return candidates, nil
	}
	return r.translitCandidates(ctx, store, name)
}

// translitCandidates 跨文字写法（Иван Петров / Ivan Petrov）编辑距离很大，按转写键相等兜底
func (r *Resolver) translitCandidates(ctx context.Context, store *repository.Store, name unresolvedName) ([]model.Candidate, error) {
	latin := names.Transliterate(name.normalized)
	if latin == "" {
		return nil, nil
	}
	players, err := store.Players.FindByLatinName(ctx, latin)
	if err != nil {
		return nil, fmt.Errorf("按转写查询选手失败: %w", err)
	}
	var out []model.Candidate
	for _, p := range players {
		c := names.Compare(name.normalized, p.NormalizedName)
		out = append(out, model.Candidate{
			PlayerID:            p.ID,
			FullName:            p.FullName,
			NormalizedName:      p.NormalizedName,
			Distance:            c.Distance,
			FirstTokenDistance:  c.FirstTokenDistance,
			SecondTokenDistance: c.SecondTokenDistance,
			Score:               c.Score(),
			Reason:              model.ReasonTranslit,
		})
		if len(out) >= r.cfg.PendingTopN {
			break
		}
	}
	return out, nil
}

func (r *Resolver) createPlayer(ctx context.Context, store *repository.Store, name unresolvedName) (*Resolution, error) {
	now := r.cfg.now()
	player, created, err := store.Players.CreateIfAbsent(ctx, &model.Player{
		FullName:       name.raw,
		NormalizedName: name.normalized,
		LatinName:      names.Transliterate(name.normalized),
		CreatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("创建选手失败: %w", err)
	}
	if !created {
		return &Resolution{Status: StatusResolved, PlayerID: player.ID, MatchedBy: "exact"}, nil
	}
	return &Resolution{Status: StatusNewPlayerCreated, PlayerID: player.ID, MatchedBy: "new"}, nil
}

func (r *Resolver) upsertPending(ctx context.Context, store *repository.Store, name unresolvedName, candidates []model.Candidate,
	tournamentID, runID uint64) (*Resolution, error) {
	now := r.cfg.now()
	existing, err := store.Pending.FindOpen(ctx, tournamentID, name.normalized)
	if err != nil {
		return nil, fmt.Errorf("查询待确认记录失败: %w", err)
	}

	res := &Resolution{Status: StatusPendingCreated, Candidates: candidates}
	if existing != nil {
		existing.RawName = name.raw
		existing.SyncRunID = runID
		existing.UpdatedAt = now
		if err := existing.SetCandidates(candidates); err != nil {
			return nil, err
		}
		if err := store.Pending.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("刷新待确认记录失败: %w", err)
		}
		res.Pending, res.Refreshed = existing, true
		return res, nil
	}

	p := &model.PendingEntry{
		SyncRunID:      runID,
		TournamentID:   tournamentID,
		RawName:        name.raw,
		NormalizedName: name.normalized,
		Status:         model.PendingOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.SetCandidates(candidates); err != nil {
		return nil, err
	}
	if err := store.Pending.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("创建待确认记录失败: %w", err)
	}
	res.Pending = p
	return res, nil
}

// pendingEvent 通知渠道展示待确认所需的信息
func pendingEvent(p *model.PendingEntry, candidates []model.Candidate, at time.Time) interfaces.Event {
	return interfaces.Event{
		Type:         interfaces.EventPendingCreated,
		OccurredAt:   at,
		SyncRunID:    p.SyncRunID,
		TournamentID: p.TournamentID,
		PendingID:    p.ID,
		Payload: map[string]interface{}{
			"raw_name":   p.RawName,
			"candidates": candidates,
		},
	}
}
