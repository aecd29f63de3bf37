package repository

import (
	"context"
	"time"

	"LundaSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingFilter 待确认列表筛选
type PendingFilter struct {
	Status       model.PendingStatus
	TournamentID uint64
	SyncRunID    uint64
}

// PendingRepository 待确认姓名仓储
type PendingRepository interface {
	// FindOpen 查 status=pending 的 (tournament_id, normalized_name)，不存在返回 nil
	FindOpen(ctx context.Context, tournamentID uint64, normalized string) (*model.PendingEntry, error)
	Create(ctx context.Context, p *model.PendingEntry) error
	Save(ctx context.Context, p *model.PendingEntry) error
	Get(ctx context.Context, id uint64) (*model.PendingEntry, error)
	// GetForUpdate 加行锁读取（postgres 下 SELECT ... FOR UPDATE），需在事务内调用
	GetForUpdate(ctx context.Context, id uint64) (*model.PendingEntry, error)
	List(ctx context.Context, filter PendingFilter, page, pageSize int) ([]*model.PendingEntry, int64, error)
	// ExpireStale 把 runStart 之前创建/刷新的 pending 全部置为 expired。
	// 按时间而不是批次 id 判断，账本行没建成（sync_run_id=0）的遗留记录同样会过期
	ExpireStale(ctx context.Context, runStart, now time.Time) (int64, error)
}

type pendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) PendingRepository {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) FindOpen(ctx context.Context, tournamentID uint64, normalized string) (*model.PendingEntry, error) {
	var list []*model.PendingEntry
	if err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND normalized_name = ? AND status = ?", tournamentID, normalized, model.PendingOpen).
		Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *pendingRepository) Create(ctx context.Context, p *model.PendingEntry) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pendingRepository) Save(ctx context.Context, p *model.PendingEntry) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *pendingRepository) Get(ctx context.Context, id uint64) (*model.PendingEntry, error) {
	var p model.PendingEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pendingRepository) GetForUpdate(ctx context.Context, id uint64) (*model.PendingEntry, error) {
	db := r.db.WithContext(ctx)
	// sqlite 不支持 FOR UPDATE，整库写锁已经串行
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p model.PendingEntry
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pendingRepository) List(ctx context.Context, filter PendingFilter, page, pageSize int) ([]*model.PendingEntry, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.PendingEntry{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.TournamentID != 0 {
		db = db.Where("tournament_id = ?", filter.TournamentID)
	}
	if filter.SyncRunID != 0 {
		db = db.Where("sync_run_id = ?", filter.SyncRunID)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.PendingEntry
	if err := db.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *pendingRepository) ExpireStale(ctx context.Context, runStart, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PendingEntry{}).
		Where("status = ? AND updated_at < ?", model.PendingOpen, runStart).
		Updates(map[string]interface{}{"status": model.PendingExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
