package repository

import (
	"context"
	"time"

	"LundaSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerRepository 选手仓储。选手只增不删
type PlayerRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.Player, error)
	// 以下 Find* 不存在时返回 nil
	FindByFullName(ctx context.Context, fullName string) (*model.Player, error)
	FindByNormalized(ctx context.Context, normalized string) (*model.Player, error)
	FindByLatinName(ctx context.Context, latin string) ([]*model.Player, error)
	// CreateIfAbsent 按显示名插入，已存在则返回已有行，created 表示本次是否新建
	CreateIfAbsent(ctx context.Context, p *model.Player) (player *model.Player, created bool, err error)
	List(ctx context.Context) ([]*model.Player, error)
}

type playerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetByID(ctx context.Context, id uint64) (*model.Player, error) {
	var p model.Player
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *playerRepository) FindByFullName(ctx context.Context, fullName string) (*model.Player, error) {
	return r.findOne(ctx, "full_name = ?", fullName)
}

func (r *playerRepository) FindByNormalized(ctx context.Context, normalized string) (*model.Player, error) {
	return r.findOne(ctx, "normalized_name = ?", normalized)
}

func (r *playerRepository) FindByLatinName(ctx context.Context, latin string) ([]*model.Player, error) {
	var list []*model.Player
	if latin == "" {
		return list, nil
	}
	if err := r.db.WithContext(ctx).Where("latin_name = ?", latin).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *playerRepository) CreateIfAbsent(ctx context.Context, p *model.Player) (*model.Player, bool, error) {
	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 && p.ID != 0 {
		return p, true, nil
	}
	// 冲突可能来自 full_name 或 normalized_name 任一唯一键
	existing, err := r.findOne(ctx, "full_name = ? OR normalized_name = ?", p.FullName, p.NormalizedName)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return existing, false, nil
}

func (r *playerRepository) List(ctx context.Context) ([]*model.Player, error) {
	var list []*model.Player
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *playerRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.Player, error) {
	var list []*model.Player
	if err := r.db.WithContext(ctx).Where(query, args...).Order("id ASC").Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// AliasRepository 人工确认的别名
type AliasRepository interface {
	// Find 不存在返回 nil
	Find(ctx context.Context, normalized string) (*model.PlayerAlias, error)
	// Upsert 记录或改指别名，后一次确认覆盖前一次
	Upsert(ctx context.Context, normalized string, playerID uint64, confirmedBy string, now time.Time) error
}

type aliasRepository struct {
	db *gorm.DB
}

func NewAliasRepository(db *gorm.DB) AliasRepository {
	return &aliasRepository{db: db}
}

func (r *aliasRepository) Find(ctx context.Context, normalized string) (*model.PlayerAlias, error) {
	var list []*model.PlayerAlias
	if err := r.db.WithContext(ctx).Where("normalized_name = ?", normalized).Limit(1).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *aliasRepository) Upsert(ctx context.Context, normalized string, playerID uint64, confirmedBy string, now time.Time) error {
	alias := &model.PlayerAlias{
		NormalizedName: normalized,
		PlayerID:       playerID,
		ConfirmedBy:    confirmedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"player_id", "confirmed_by", "updated_at"}),
	}).Create(alias).Error
}
