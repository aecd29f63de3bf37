package service

import (
	"context"
	"errors"
	"fmt"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"

	"gorm.io/gorm"
)

// TournamentRoster 赛事及其报名名单
type TournamentRoster struct {
	Tournament *model.Tournament      `json:"tournament"`
	Entries    []repository.RosterRow `json:"entries"`
	Pending    []*model.PendingEntry  `json:"pending"`
}

// RosterService 名单查询（给展示层与导出）
type RosterService struct {
	store *repository.Store
}

func NewRosterService(store *repository.Store) *RosterService {
	return &RosterService{store: store}
}

// Get 包含 inactive 报名与本场仍待确认的姓名
func (s *RosterService) Get(ctx context.Context, tournamentID uint64) (*TournamentRoster, error) {
	t, err := s.store.Tournaments.GetByID(ctx, tournamentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询赛事失败: %w", err)
	}
	rows, err := s.store.Entries.Roster(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("查询名单失败: %w", err)
	}
	pending, _, err := s.store.Pending.List(ctx, repository.PendingFilter{
		TournamentID: tournamentID,
		Status:       model.PendingOpen,
	}, 1, 100)
	if err != nil {
		return nil, fmt.Errorf("查询待确认记录失败: %w", err)
	}
	return &TournamentRoster{Tournament: t, Entries: rows, Pending: pending}, nil
}
