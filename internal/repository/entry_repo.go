package repository

import (
	"context"
	"time"

	"LundaSync/internal/model"

	"gorm.io/gorm"
)

// RosterRow 赛事名单一行（展示/导出用）
type RosterRow struct {
	EntryID         uint64              `json:"entry_id"`
	PlayerID        uint64              `json:"player_id"`
	FullName        string              `json:"full_name"`
	PaymentStatus   model.PaymentStatus `json:"payment_status"`
	ManualPaid      bool                `json:"manual_paid"`
	ManualAdded     bool                `json:"manual_added"`
	Active          bool                `json:"active"`
	ConfirmationURL *string             `json:"confirmation_url,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	FirstSeenAt     time.Time           `json:"first_seen_at"`
	LastSeenAt      time.Time           `json:"last_seen_at"`
}

// EntryRepository 参赛记录仓储
type EntryRepository interface {
	// Find 按 (tournament_id, player_id) 查找，不存在返回 nil
	Find(ctx context.Context, tournamentID, playerID uint64) (*model.Entry, error)
	Create(ctx context.Context, e *model.Entry) error
	Reactivate(ctx context.Context, id uint64, now time.Time) error
	ListByTournament(ctx context.Context, tournamentID uint64) ([]*model.Entry, error)
	Delete(ctx context.Context, ids []uint64) error
	Deactivate(ctx context.Context, ids []uint64, now time.Time) error
	// DeactivateByTournaments 整场赛事下线时只置 inactive，不删除
	DeactivateByTournaments(ctx context.Context, tournamentIDs []uint64, now time.Time) (int64, error)
	Roster(ctx context.Context, tournamentID uint64) ([]RosterRow, error)
}

type entryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Find(ctx context.Context, tournamentID, playerID uint64) (*model.Entry, error) {
	var list []*model.Entry
	if err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
		Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *entryRepository) Create(ctx context.Context, e *model.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *entryRepository) Reactivate(ctx context.Context, id uint64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Entry{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":       true,
			"last_seen_at": now,
			"updated_at":   now,
		}).Error
}

func (r *entryRepository) ListByTournament(ctx context.Context, tournamentID uint64) ([]*model.Entry, error) {
	var list []*model.Entry
	if err := r.db.WithContext(ctx).Where("tournament_id = ?", tournamentID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *entryRepository) Delete(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Entry{}).Error
}

func (r *entryRepository) Deactivate(ctx context.Context, ids []uint64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Entry{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"active": false, "updated_at": now}).Error
}

func (r *entryRepository) DeactivateByTournaments(ctx context.Context, tournamentIDs []uint64, now time.Time) (int64, error) {
	if len(tournamentIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Entry{}).
		Where("tournament_id IN ? AND active = ?", tournamentIDs, true).
		Updates(map[string]interface{}{"active": false, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *entryRepository) Roster(ctx context.Context, tournamentID uint64) ([]RosterRow, error) {
	var rows []RosterRow
	err := r.db.WithContext(ctx).Table("entries AS e").
		Select(`e.id AS entry_id, e.player_id, p.full_name, e.payment_status, e.manual_paid, e.manual_added,
			e.active, e.confirmation_url, e.paid_at, e.first_seen_at, e.last_seen_at`).
		Joins("JOIN players AS p ON p.id = e.player_id").
		Where("e.tournament_id = ?", tournamentID).
		Order("p.full_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
