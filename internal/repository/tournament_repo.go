package repository

import (
	"context"
	"time"

	"LundaSync/internal/model"

	"gorm.io/gorm"
)

// TournamentRepository 赛事仓储
type TournamentRepository interface {
	// FindByNaturalKey 按 (location, starts_at) 查非重复行，不存在返回 nil
	FindByNaturalKey(ctx context.Context, location string, startsAt time.Time) (*model.Tournament, error)
	GetByID(ctx context.Context, id uint64) (*model.Tournament, error)
	Create(ctx context.Context, t *model.Tournament) error
	Save(ctx context.Context, t *model.Tournament) error
	// ArchiveAged 归档开赛时间早于 cutoff 且仍活跃的赛事，返回被归档的 id
	ArchiveAged(ctx context.Context, cutoff, now time.Time) ([]uint64, error)
	// ArchiveAbsent 归档未归档、last_seen_at 早于 runStart 且不在 touched 中的赛事，返回被归档的 id
	ArchiveAbsent(ctx context.Context, runStart time.Time, touched []uint64, now time.Time) ([]uint64, error)
}

type tournamentRepository struct {
	db *gorm.DB
}

func NewTournamentRepository(db *gorm.DB) TournamentRepository {
	return &tournamentRepository{db: db}
}

func (r *tournamentRepository) FindByNaturalKey(ctx context.Context, location string, startsAt time.Time) (*model.Tournament, error) {
	var list []*model.Tournament
	if err := r.db.WithContext(ctx).
		Where("location = ? AND starts_at = ? AND is_duplicate = ?", location, startsAt, false).
		Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *tournamentRepository) GetByID(ctx context.Context, id uint64) (*model.Tournament, error) {
	var t model.Tournament
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tournamentRepository) Create(ctx context.Context, t *model.Tournament) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tournamentRepository) Save(ctx context.Context, t *model.Tournament) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *tournamentRepository) ArchiveAged(ctx context.Context, cutoff, now time.Time) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&model.Tournament{}).
		Where("archived_at IS NULL AND starts_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.archive(ctx, ids, now); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tournamentRepository) ArchiveAbsent(ctx context.Context, runStart time.Time, touched []uint64, now time.Time) ([]uint64, error) {
	q := r.db.WithContext(ctx).Model(&model.Tournament{}).
		Where("archived_at IS NULL AND last_seen_at < ?", runStart)
	// 空切片会生成 NOT IN (NULL)，结果恒为空
	if len(touched) > 0 {
		q = q.Where("id NOT IN ?", touched)
	}
	var ids []uint64
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.archive(ctx, ids, now); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tournamentRepository) archive(ctx context.Context, ids []uint64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Tournament{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"archived_at": now,
			"active":      false,
			"updated_at":  now,
		}).Error
}
