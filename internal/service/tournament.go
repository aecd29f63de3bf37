package service

import (
	"context"
	"fmt"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/snapshot"

	"github.com/gosimple/slug"
)

// TournamentUpserter 按自然键 (location, starts_at) 对账单条赛事
type TournamentUpserter struct {
	cfg EngineConfig
}

func NewTournamentUpserter(cfg EngineConfig) *TournamentUpserter {
	return &TournamentUpserter{cfg: cfg.withDefaults()}
}

// Upsert 已存在则更新可变字段并取消归档，first_seen_at 保持不变；不存在则插入
func (u *TournamentUpserter) Upsert(ctx context.Context, store *repository.Store, rec *snapshot.Tournament) (*model.Tournament, bool, error) {
	now := u.cfg.now()
	startsAt := rec.StartsAt.In(u.cfg.Location)

	t, err := store.Tournaments.FindByNaturalKey(ctx, rec.Location, startsAt)
	if err != nil {
		return nil, false, fmt.Errorf("查询赛事失败: %w", err)
	}
	isNew := t == nil
	if isNew {
		t = &model.Tournament{
			Location:    rec.Location,
			StartsAt:    startsAt,
			FirstSeenAt: now,
			CreatedAt:   now,
		}
	}

	t.Title = rec.Title
	t.Organizer = rec.Organizer
	t.EndsAt = nil
	if rec.EndsAt != nil {
		endsAt := rec.EndsAt.In(u.cfg.Location)
		t.EndsAt = &endsAt
	}
	t.PriceRub = rec.PriceRub
	t.Category = rec.Category
	t.Slug = tournamentSlug(rec)
	t.Source = u.cfg.SourceTag
	t.SourceLastUpdated = nil
	if rec.SourceLastUpdated != "" {
		v := rec.SourceLastUpdated
		t.SourceLastUpdated = &v
	}
	t.LastSeenAt = now
	t.ArchivedAt = nil
	t.Active = true
	t.UpdatedAt = now

	if isNew {
		if err := store.Tournaments.Create(ctx, t); err != nil {
			return nil, false, fmt.Errorf("创建赛事失败: %w", err)
		}
		return t, true, nil
	}
	if err := store.Tournaments.Save(ctx, t); err != nil {
		return nil, false, fmt.Errorf("更新赛事失败: %w", err)
	}
	return t, false, nil
}

func tournamentSlug(rec *snapshot.Tournament) string {
	title := rec.Title
	if title == "" {
		title = rec.Location
	}
	return slug.Make(title + " " + rec.StartsAt.Format("2006-01-02 1504"))
}
