package repository

import (
	"context"

	"LundaSync/internal/model"

	"gorm.io/gorm"
)

// SyncRunRepository 同步批次台账
type SyncRunRepository interface {
	Create(ctx context.Context, run *model.SyncRun) error
	Save(ctx context.Context, run *model.SyncRun) error
	GetByID(ctx context.Context, id uint64) (*model.SyncRun, error)
	ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error)
}

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncRunRepository) Save(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *syncRunRepository) GetByID(ctx context.Context, id uint64) (*model.SyncRun, error) {
	var run model.SyncRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *syncRunRepository) ListRecent(ctx context.Context, limit int) ([]*model.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var list []*model.SyncRun
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
